package validator

func ValidateDeviceType(deviceType string) bool {
	validTypes := map[string]bool{
		"desktop": true,
		"mobile":  true,
		"tablet":  true,
	}
	return validTypes[deviceType]
}

func ValidateTriggerSource(trigger string) bool {
	return trigger == "scheduled" || trigger == "manual"
}
