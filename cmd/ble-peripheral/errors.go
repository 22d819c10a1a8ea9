package main

import "errors"

var (
	errConnectFailed   = errors.New("connect failed")
	errBusy            = errors.New("gatt busy")
	errDiscoveryFailed = errors.New("service discovery failed")
	errNoService       = errors.New("peripheral service not found")
	errTimeout         = errors.New("timed out")
)
