package dashboard

import "fmt"

// HotAlert is the banner shown when the latest prediction is hot.
func HotAlert(tempIn float64) string {
	return fmt.Sprintf("PERINGATAN SUHU TINGGI! Suhu kelas mencapai %.1f°C.", tempIn)
}
