package convert

import (
	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
)

// typeConn keys the device mapping table on a HAL device type plus its
// connection qualifier.
type typeConn struct {
	Type       hal.DeviceType
	Connection string
}

// deviceTypeTable maps exact type/connection pairs to platform device types.
// Pairs not listed fall back to deviceTypeDefaults for their HAL type.
var deviceTypeTable = map[typeConn]models.DeviceType{
	{hal.DeviceOutSpeaker, hal.ConnectionBTA2DP}: models.DeviceTypeBluetoothA2DP,
	{hal.DeviceOutSpeaker, hal.ConnectionBTLE}:   models.DeviceTypeBLESpeaker,

	{hal.DeviceOutHeadphone, hal.ConnectionAnalog}: models.DeviceTypeWiredHeadphones,

	{hal.DeviceOutHeadset, hal.ConnectionAnalog}: models.DeviceTypeWiredHeadset,
	{hal.DeviceOutHeadset, hal.ConnectionBTLE}:   models.DeviceTypeBLEHeadset,
	{hal.DeviceOutHeadset, hal.ConnectionBTSCO}:  models.DeviceTypeBluetoothSCO,

	{hal.DeviceOutDevice, hal.ConnectionBTA2DP}:   models.DeviceTypeBluetoothA2DP,
	{hal.DeviceOutDevice, hal.ConnectionIPV4}:     models.DeviceTypeIP,
	{hal.DeviceOutDevice, hal.ConnectionHDMIARC}:  models.DeviceTypeHDMIARC,
	{hal.DeviceOutDevice, hal.ConnectionHDMIEARC}: models.DeviceTypeHDMIEARC,
	{hal.DeviceOutDevice, hal.ConnectionHDMI}:     models.DeviceTypeHDMI,
	{hal.DeviceOutDevice, hal.ConnectionAnalog}:   models.DeviceTypeLineAnalog,
	{hal.DeviceOutDevice, hal.ConnectionUSB}:      models.DeviceTypeUSBDevice,
	{hal.DeviceOutDevice, hal.ConnectionSPDIF}:    models.DeviceTypeLineDigital,
}

// deviceTypeDefaults is the per-type fallback when no exact pair matches.
var deviceTypeDefaults = map[hal.DeviceType]models.DeviceType{
	hal.DeviceOutSpeaker:    models.DeviceTypeBuiltinSpeaker,
	hal.DeviceOutHeadphone:  models.DeviceTypeBluetoothA2DP,
	hal.DeviceOutHeadset:    models.DeviceTypeUSBHeadset,
	hal.DeviceOutAccessory:  models.DeviceTypeUSBAccessory,
	hal.DeviceOutLineAux:    models.DeviceTypeAuxLine,
	hal.DeviceOutBroadcast:  models.DeviceTypeBLEBroadcast,
	hal.DeviceOutHearingAid: models.DeviceTypeHearingAid,
	hal.DeviceOutDevice:     models.DeviceTypeBus,
}

// DeviceInfoType maps a HAL device type and connection qualifier to the
// platform device type. Only the generic device level falls back to the bus
// type; a HAL type outside the table maps to DeviceTypeUnsupported.
func DeviceInfoType(t hal.DeviceType, connection string) models.DeviceType {
	if t == hal.DeviceOutBus {
		// Bus and generic device share one mapping.
		t = hal.DeviceOutDevice
	}
	if mapped, ok := deviceTypeTable[typeConn{t, connection}]; ok {
		return mapped
	}
	if def, ok := deviceTypeDefaults[t]; ok {
		return def
	}
	return models.DeviceTypeUnsupported
}
