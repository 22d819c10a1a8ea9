package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/user/ble-peripheral/android"
	"github.com/user/ble-peripheral/gatthost"
	"github.com/user/ble-peripheral/kotlin"
	"github.com/user/ble-peripheral/peripheral"
	"github.com/user/ble-peripheral/wire"
)

type openedHost struct {
	host  peripheral.Host
	close func()
}

func openHost(ctx context.Context, opts options) (*openedHost, error) {
	switch opts.host {
	case "sim":
		return openSimHost(ctx, opts)
	case "hci":
		cfg := gatthost.DefaultConfig()
		cfg.DeviceID = opts.hciDev
		h, err := gatthost.New(cfg)
		if err != nil {
			return nil, err
		}
		return &openedHost{host: h, close: func() { h.Close() }}, nil
	default:
		return nil, fmt.Errorf("unknown host %q (want sim or hci)", opts.host)
	}
}

// openSimHost builds a medium with the simulated Android peripheral and a
// simulated central that keeps reading from it
func openSimHost(ctx context.Context, opts options) (*openedHost, error) {
	var mediumOpts []wire.MediumOption
	if opts.realistic {
		mediumOpts = append(mediumOpts, wire.WithRealisticTiming())
	}
	medium := wire.NewMedium(mediumOpts...)

	pw := wire.NewWire(medium, uuid.NewString())
	if err := pw.Start(); err != nil {
		return nil, err
	}
	phone := android.NewAndroid(pw, kotlin.DefaultFeatures())

	cw := wire.NewWire(medium, uuid.NewString())
	if err := cw.Start(); err != nil {
		pw.Stop()
		return nil, err
	}
	central := newSimCentral(cw, opts.readEvery)
	centralCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		central.run(centralCtx)
	}()

	return &openedHost{
		host: phone,
		close: func() {
			cancel()
			<-done
			phone.Close()
			cw.Stop()
			pw.Stop()
		},
	}, nil
}
