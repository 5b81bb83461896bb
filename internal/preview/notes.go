package preview

import (
	"fmt"
	"strconv"
	"strings"
)

func buildNotes(values map[string][]string) []Note {
	if len(values) == 0 {
		return nil
	}

	notes := []Note{}

	if device := buildDeviceNote(values); device != nil {
		notes = append(notes, *device)
	}
	if software := buildSoftwareNote(values); software != nil {
		notes = append(notes, *software)
	}
	if ts := buildTimestampNote(values); ts != nil {
		notes = append(notes, *ts)
	}
	if gps := buildGPSNote(values); gps != nil {
		notes = append(notes, *gps)
	}

	return notes
}

func buildGPSNote(values map[string][]string) *Note {
	latRaw := firstValue(values, "GPSLatitude")
	lonRaw := firstValue(values, "GPSLongitude")
	if latRaw == "" || lonRaw == "" {
		if hasPrefixedKey(values, "GPS") {
			return &Note{Kind: "Location", Message: "GPS tags present"}
		}
		return nil
	}

	lat, okLat := parseGPSCoordinate(latRaw)
	lon, okLon := parseGPSCoordinate(lonRaw)
	if !okLat || !okLon {
		return &Note{Kind: "Location", Message: "GPS tags present"}
	}

	if firstValue(values, "GPSLatitudeRef") == "S" {
		lat = -lat
	}
	if firstValue(values, "GPSLongitudeRef") == "W" {
		lon = -lon
	}

	return &Note{Kind: "Location", Message: fmt.Sprintf("Approx location: %.5f, %.5f", lat, lon)}
}

func buildDeviceNote(values map[string][]string) *Note {
	make := firstValue(values, "Make")
	model := firstValue(values, "Model")
	cameraModel := firstValue(values, "CameraModelName")

	device := strings.TrimSpace(strings.Join([]string{make, model}, " "))
	if device == "" {
		device = cameraModel
	}
	if device == "" {
		return nil
	}

	msg := fmt.Sprintf("Device: %s", device)
	if deviceType := inferDeviceType(strings.ToLower(device)); deviceType != "" {
		msg += fmt.Sprintf(" (%s)", deviceType)
	}
	return &Note{Kind: "Device", Message: msg}
}

// Editing software leaves its name behind; worth surfacing next to a
// manipulation verdict.
func buildSoftwareNote(values map[string][]string) *Note {
	software := firstValue(values, "Software")
	if software == "" {
		return nil
	}
	return &Note{Kind: "Software", Message: fmt.Sprintf("Processed with: %s", software)}
}

func buildTimestampNote(values map[string][]string) *Note {
	ts := firstValue(values, "DateTimeOriginal")
	if ts == "" {
		ts = firstValue(values, "DateTimeDigitized")
	}
	if ts == "" {
		ts = firstValue(values, "DateTime")
	}
	if ts == "" {
		return nil
	}

	formatted := replaceFirstN(ts, ":", "-", 2)
	return &Note{Kind: "Timeline", Message: fmt.Sprintf("Captured: %s (timezone unknown)", formatted)}
}

func firstValue(values map[string][]string, key string) string {
	if list, ok := values[key]; ok && len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	return ""
}

func hasPrefixedKey(values map[string][]string, prefix string) bool {
	for key := range values {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func parseGPSCoordinate(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	parts := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	if len(parts) == 0 {
		return 0, false
	}

	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, ok := parseRational(part)
		if !ok {
			return 0, false
		}
		values = append(values, value)
	}

	switch len(values) {
	case 3:
		return values[0] + values[1]/60.0 + values[2]/3600.0, true
	case 2:
		return values[0] + values[1]/60.0, true
	default:
		return values[0], true
	}
}

func parseRational(part string) (float64, bool) {
	part = strings.TrimSpace(part)
	if part == "" {
		return 0, false
	}
	if num, den, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, false
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}

	value, err := strconv.ParseFloat(part, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func inferDeviceType(device string) string {
	switch {
	case strings.Contains(device, "iphone"),
		strings.Contains(device, "pixel"),
		strings.Contains(device, "galaxy"),
		strings.Contains(device, "android"):
		return "smartphone"
	case strings.Contains(device, "ipad"),
		strings.Contains(device, "tablet"):
		return "tablet"
	case strings.Contains(device, "gopro"):
		return "action camera"
	case strings.Contains(device, "dji"):
		return "drone"
	case strings.Contains(device, "canon"),
		strings.Contains(device, "nikon"),
		strings.Contains(device, "sony"),
		strings.Contains(device, "fujifilm"),
		strings.Contains(device, "panasonic"),
		strings.Contains(device, "olympus"),
		strings.Contains(device, "leica"):
		return "camera"
	default:
		return ""
	}
}

func replaceFirstN(s, old, new string, n int) string {
	if n <= 0 || old == "" {
		return s
	}
	out := s
	for i := 0; i < n; i++ {
		idx := strings.Index(out, old)
		if idx < 0 {
			break
		}
		out = out[:idx] + new + out[idx+len(old):]
	}
	return out
}
