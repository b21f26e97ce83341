package dm

// DeviceInfo is a read-only summary of the control header the kernel wrote
// back for a command. Every successful command returns one; it reflects the
// device state at the time the kernel processed that command and nothing is
// cached beyond it.
type DeviceInfo struct {
	hdr header
}

// Version returns the ioctl protocol version the kernel spoke for this
// response.
func (i *DeviceInfo) Version() [3]uint32 {
	return i.hdr.version
}

// DataSize returns the total buffer size of the final response, header
// included. Mostly useful for diagnostics.
func (i *DeviceInfo) DataSize() uint32 {
	return i.hdr.dataSize
}

// TargetCount returns the number of records in the response payload.
func (i *DeviceInfo) TargetCount() uint32 {
	return i.hdr.targetCount
}

// OpenCount returns the kernel's reference count of open handles on the
// device.
func (i *DeviceInfo) OpenCount() int32 {
	return i.hdr.openCount
}

// Flags returns the response flags, e.g. FlagActivePresent or FlagReadonly.
func (i *DeviceInfo) Flags() Flags {
	return i.hdr.flags
}

// EventNr returns the device's event sequence number. On responses to
// commands issued with a udev cookie the low half of the field carried the
// cookie instead, so the value is only meaningful on query commands.
func (i *DeviceInfo) EventNr() uint32 {
	return i.hdr.eventNr
}

// Dev returns the device number the kernel assigned.
func (i *DeviceInfo) Dev() Device {
	return deviceFromKdev(i.hdr.dev)
}

// Name returns the device name, or "" when the response carries none. After
// a rename this is the name the device had before the rename took effect.
func (i *DeviceInfo) Name() Name {
	return Name(i.hdr.name)
}

// UUID returns the device UUID, or "" if none was set at create time.
func (i *DeviceInfo) UUID() UUID {
	return UUID(i.hdr.uuid)
}
