package fingerprint

import (
	"bufio"
	"cmp"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/web"
)

const (
	hikvisionConfigPath = "/System/configurationFile?auth="
	hikvisionInfoPath   = "/ISAPI/System/deviceInfo"
	dahuaInfoPath       = "/cgi-bin/magicBox.cgi?action=getSystemInfo"
	axisParamPath       = "/axis-cgi/admin/param.cgi?action=list"

	cpplusModel  = "CP-UVR-0401E1-IC2"
	previewBytes = 500
)

var defaultHikvision = model.Credential{Username: "admin", Password: "1234"}

func (f *Fingerprinter) hikvision(ctx context.Context, fp *model.Fingerprint, base string) {
	cred, ok := f.sweep(ctx, base)
	if !ok {
		cred = defaultHikvision
	}
	auth := base64.StdEncoding.EncodeToString([]byte(cred.String()))

	for _, url := range []string{base + hikvisionConfigPath + auth, base + hikvisionInfoPath} {
		if ctx.Err() != nil {
			return
		}
		resp, err := f.web.Get(ctx, url)
		if err != nil {
			slog.DebugContext(ctx, "endpoint probe failed", "url", url, "error", err)
			continue
		}
		switch resp.Status {
		case http.StatusUnauthorized:
			fp.Note("authentication failed for " + url)
			continue
		case http.StatusOK:
		default:
			continue
		}
		fp.Note("found at " + url)

		info, err := parseDeviceInfo(resp.Body)
		if err != nil {
			slog.WarnContext(ctx, "cannot parse XML configuration", "url", url, "error", err)
			fp.Note("cannot parse XML configuration from " + url)
			continue
		}
		if fp.Model == "" {
			fp.Model = info.model
		}
		if fp.Firmware == "" {
			fp.Firmware = info.firmware
		}
	}
}

// sweep tries the default credential table with Basic auth against the
// root and returns the first pair answered by 200. A transport error ends
// the sweep early.
func (f *Fingerprinter) sweep(ctx context.Context, base string) (model.Credential, bool) {
	for _, cred := range f.catalog.Credentials.All() {
		if ctx.Err() != nil {
			break
		}
		resp, err := f.web.Do(ctx, web.Request{URL: base, Auth: &cred})
		if err != nil {
			break
		}
		if resp.Status == http.StatusOK {
			return cred, true
		}
	}
	return model.Credential{}, false
}

func (f *Fingerprinter) dahua(ctx context.Context, fp *model.Fingerprint, base string) {
	url := base + dahuaInfoPath
	resp, err := f.web.Get(ctx, url)
	if err != nil {
		slog.DebugContext(ctx, "endpoint probe failed", "url", url, "error", err)
		return
	}
	if resp.Status != http.StatusOK {
		fp.Note(fmt.Sprintf("%s -> HTTP %d", url, resp.Status))
		return
	}
	fp.Note("found at " + url)

	for _, kv := range parseKeyValues(string(resp.Body)) {
		switch kv.key {
		case "deviceType":
			fp.Model = kv.value
		case "serialNumber":
			fp.Note("serial number: " + kv.value)
		case "hardwareVersion":
			fp.Note("hardware version: " + kv.value)
		}
	}
	if raw := strings.TrimSpace(string(resp.Body)); raw != "" {
		fp.Note(raw)
	}
}

func (f *Fingerprinter) axis(ctx context.Context, fp *model.Fingerprint, base string) {
	url := base + axisParamPath
	resp, err := f.web.Get(ctx, url)
	if err != nil {
		slog.DebugContext(ctx, "endpoint probe failed", "url", url, "error", err)
		return
	}
	if resp.Status != http.StatusOK {
		fp.Note(fmt.Sprintf("%s -> HTTP %d", url, resp.Status))
		return
	}
	fp.Note("found at " + url)

	var prodNbr, anyModel, version, anyFirmware string
	for _, kv := range parseKeyValues(string(resp.Body)) {
		if !axisKey(kv.key) {
			continue
		}
		fp.Note(kv.key + "=" + kv.value)
		switch {
		case kv.key == "root.Brand.ProdNbr":
			prodNbr = kv.value
		case kv.key == "root.Properties.Firmware.Version":
			version = kv.value
		case anyModel == "" && strings.Contains(kv.key, "Model"):
			anyModel = kv.value
		case anyFirmware == "" && strings.Contains(kv.key, "Firmware"):
			anyFirmware = kv.value
		}
	}
	fp.Model = cmp.Or(prodNbr, anyModel)
	fp.Firmware = cmp.Or(version, anyFirmware)
}

func axisKey(key string) bool {
	for _, prefix := range []string{"root.Brand", "root.Model", "root.Firmware", "root.Properties.Firmware"} {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (f *Fingerprinter) cpplus(ctx context.Context, fp *model.Fingerprint, base string) {
	for _, path := range f.catalog.Fingerprint.CPPlusPaths {
		if ctx.Err() != nil {
			return
		}
		url := base + path
		resp, err := f.web.Get(ctx, url)
		if err != nil {
			slog.DebugContext(ctx, "endpoint probe failed", "url", url, "error", err)
			continue
		}
		if resp.Status != http.StatusOK {
			continue
		}
		fp.Note("found at " + url)

		text := resp.Text()
		if strings.Contains(text, "uvr-0401e1") || strings.Contains(text, "uvr0401e1") {
			fp.Model = cpplusModel
		}
		if strings.Contains(text, "dvr") {
			fp.Note("device type: DVR")
		}
		preview := string(resp.Body)
		if len(preview) > previewBytes {
			preview = preview[:previewBytes]
		}
		fp.Note("response preview: " + preview)
		return
	}
}

type keyValue struct {
	key   string
	value string
}

// parseKeyValues parses "key=value" lines, the format of the Dahua and
// Axis CGI endpoints.
func parseKeyValues(body string) []keyValue {
	var ret []keyValue
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		ret = append(ret, keyValue{key: key, value: strings.TrimSpace(value)})
	}
	return ret
}
