package types

// IIN (Internal Indication) carries the outstation's status bits that
// accompany every response fragment.
type IIN struct {
	IIN1 uint8
	IIN2 uint8
}

// IIN1 bit masks
const (
	IIN1AllStations   uint8 = 0x01 // Broadcast message received
	IIN1Class1Events  uint8 = 0x02 // Class 1 events available
	IIN1Class2Events  uint8 = 0x04 // Class 2 events available
	IIN1Class3Events  uint8 = 0x08 // Class 3 events available
	IIN1NeedTime      uint8 = 0x10 // Device needs time synchronization
	IIN1LocalControl  uint8 = 0x20 // Device in local control mode
	IIN1DeviceTrouble uint8 = 0x40 // Device trouble or malfunction
	IIN1DeviceRestart uint8 = 0x80 // Device restart detected
)

// HasDeviceRestart returns true if device restart was detected
func (iin IIN) HasDeviceRestart() bool {
	return iin.IIN1&IIN1DeviceRestart != 0
}

// IsInLocalControl returns true if the device is in local control mode
func (iin IIN) IsInLocalControl() bool {
	return iin.IIN1&IIN1LocalControl != 0
}

// HasDeviceTrouble returns true if device trouble is indicated
func (iin IIN) HasDeviceTrouble() bool {
	return iin.IIN1&IIN1DeviceTrouble != 0
}
