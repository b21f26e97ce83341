package util

import (
	"github.com/thinkparq/devicemapper-go/dm"
)

// ResolveDevID turns a user provided device argument into an identity the control interface
// accepts. Devices are addressed by name unless byUUID is set.
func ResolveDevID(arg string, byUUID bool) (dm.DevID, error) {
	if byUUID {
		uuid, err := dm.UUIDFromString(arg)
		if err != nil {
			return nil, err
		}
		return uuid, nil
	}
	name, err := dm.NameFromString(arg)
	if err != nil {
		return nil, err
	}
	return name, nil
}
