package kotlin

// BluetoothDevice matches Android's BluetoothDevice class
type BluetoothDevice struct {
	Name    string
	Address string
	adapter *BluetoothAdapter
}

// ConnectGatt matches: device.connectGatt(context, autoConnect, callback).
// The outcome arrives through callback.OnConnectionStateChange.
func (d *BluetoothDevice) ConnectGatt(callback BluetoothGattCallback) *BluetoothGatt {
	g := &BluetoothGatt{
		device:   d,
		adapter:  d.adapter,
		callback: callback,
	}
	d.adapter.registerClient(g)

	go func() {
		if err := d.adapter.wire.Connect(d.Address); err != nil {
			d.adapter.unregisterClient(g)
			callback.OnConnectionStateChange(g, GATT_FAILURE, STATE_DISCONNECTED)
		}
	}()
	return g
}
