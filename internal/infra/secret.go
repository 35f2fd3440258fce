package infra

// MaskSecret hides most of a credential or webhook URL for log output.
// Short values are fully masked.
func MaskSecret(s string) string {
	const visible = 6
	if len(s) <= visible*2 {
		return "********"
	}
	return s[:visible] + "..." + s[len(s)-4:]
}
