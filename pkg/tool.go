package pkg

// Contains check slice holds val, e.g. a conversation participant
func Contains(slice []string, val string) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}
