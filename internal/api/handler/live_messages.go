package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound and outbound event names on the live channel.
const (
	eventAuthenticate = "authenticate"
	eventGetDeviceID  = "getDeviceId"
	eventNotification = "notification"
	eventAllAlerts    = "allAlerts"
	eventEtaAlerts    = "etaAlerts"
)

// Viewer notices.
const (
	noticeNoToken       = "Authentication error: No token provided"
	noticeInvalidToken  = "Authentication error: Invalid token"
	noticeScopeFailed   = "Authentication error: Unable to resolve device scope"
	noticeAuthenticated = "Successfully authenticated!"
	noticeAuthRequired  = "Authentication required"
	noticeDeviceDenied  = "Device not authorized"
	noticeBadMessage    = "Invalid message"
)

// inbound is the envelope of every viewer message.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outbound is the envelope of every server message.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type authenticateMessage struct {
	Token string `json:"token"`
	// Preferences asks for preference-aware delivery.
	Preferences bool `json:"preferences"`
}

type getDeviceMessage struct {
	DeviceID deviceID `json:"DeviceId" validate:"required,max=64"`
}

type notificationMessage struct {
	Message string `json:"message"`
}

// deviceID accepts a device id sent either as a JSON string or a number.
type deviceID string

func (d *deviceID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = deviceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("DeviceId: %w", err)
	}
	*d = deviceID(n.String())
	return nil
}
