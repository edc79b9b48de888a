package fingerprint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clbanning/mxj"
)

type deviceInfo struct {
	model    string
	firmware string
}

// parseDeviceInfo extracts model and firmwareVersion elements at any depth
// of an ISAPI style XML document.
func parseDeviceInfo(body []byte) (deviceInfo, error) {
	m, err := mxj.NewMapXml(body)
	if err != nil {
		return deviceInfo{}, fmt.Errorf("parsing device info: %w", err)
	}
	if len(m) == 0 {
		return deviceInfo{}, errors.New("parsing device info: empty document")
	}
	return deviceInfo{
		model:    xmlValue(m, "model"),
		firmware: xmlValue(m, "firmwareVersion"),
	}, nil
}

// xmlValue returns the first non empty text of the elements named key.
func xmlValue(m mxj.Map, key string) string {
	values, err := m.ValuesForKey(key)
	if err != nil {
		return ""
	}
	for _, v := range values {
		var s string
		switch v := v.(type) {
		case string:
			s = v
		case map[string]any:
			s, _ = v["#text"].(string)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
