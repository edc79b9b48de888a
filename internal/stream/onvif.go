package stream

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/web"

	"github.com/clbanning/mxj"
)

const (
	soapContentType = "application/soap+xml; charset=utf-8"

	getDeviceInformation = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">` +
		`<s:Body><tds:GetDeviceInformation xmlns:tds="http://www.onvif.org/ver10/device/wsdl"/></s:Body>` +
		`</s:Envelope>`

	deviceInformationPath = "Envelope.Body.GetDeviceInformationResponse."
)

// verifyONVIF posts GetDeviceInformation to the device service. Any SOAP
// envelope, a fault included, or an authentication challenge marks the
// endpoint as present.
func (e *Enumerator) verifyONVIF(ctx context.Context, c model.StreamCandidate) model.Stream {
	s := model.Stream{StreamCandidate: c, Class: model.StreamNone}
	resp, err := e.web.Do(ctx, web.Request{
		Method:      http.MethodPost,
		URL:         c.URL,
		Body:        []byte(getDeviceInformation),
		ContentType: soapContentType,
	})
	if err != nil {
		slog.DebugContext(ctx, "onvif check failed", "url", c.URL, "error", err)
		return s
	}
	s.ContentType = resp.ContentType()

	if resp.Status == http.StatusUnauthorized {
		s.Class = model.StreamPotential
		s.Detail = "ONVIF device service requires authentication"
		return s
	}

	m, err := mxj.NewMapXml(resp.Body)
	if err != nil {
		return s
	}
	if _, ok := m["Envelope"]; !ok {
		return s
	}
	s.Class = model.StreamPotential
	s.Detail = "ONVIF device service"
	if info := deviceInformation(m); info != "" {
		s.Detail += ": " + info
	}
	return s
}

func deviceInformation(m mxj.Map) string {
	var parts []string
	for _, key := range []string{"Manufacturer", "Model", "FirmwareVersion"} {
		if v, _ := m.ValueForPathString(deviceInformationPath + key); v != "" {
			parts = append(parts, strings.TrimSpace(v))
		}
	}
	return strings.Join(parts, " ")
}
