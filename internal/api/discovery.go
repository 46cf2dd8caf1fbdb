package api

import (
	"net/http"
	"time"

	"github.com/undarez/synexa-sub001/internal/discovery"
)

// maxDiscoveryTimeoutMS caps a caller-supplied discovery budget.
const maxDiscoveryTimeoutMS = 30000

// networkDiscoveryRequest is the body of POST /discovery/network. Every
// field is optional.
type networkDiscoveryRequest struct {
	TimeoutMS    int                  `json:"timeoutMs"`
	Type         discovery.DeviceType `json:"type"`
	Manufacturer string               `json:"manufacturer"`
}

// bluetoothDiscoveryRequest is the body of POST /discovery/bluetooth.
//
// The chooser runs on the client, in response to a user gesture; the
// server only classifies what the client reports.
type bluetoothDiscoveryRequest struct {
	AcceptedServices []string                `json:"acceptedServices"`
	Cancelled        bool                    `json:"cancelled"`
	Error            string                  `json:"error"`
	Device           *discovery.PickedDevice `json:"device"`
}

type bluetoothDiscoveryResponse struct {
	Cancelled bool              `json:"cancelled"`
	Device    *discovery.Device `json:"device,omitempty"`
}

// connectRequest is the body of POST /devices/connect.
type connectRequest struct {
	Device      *discovery.Device      `json:"device"`
	Credentials *discovery.Credentials `json:"credentials"`
}

// handleNetworkDiscovery runs one bounded WiFi discovery and returns the
// merged, filtered device list. Discovery itself never fails; an empty list
// means nothing answered in time.
func (s *Server) handleNetworkDiscovery(w http.ResponseWriter, r *http.Request) {
	var req networkDiscoveryRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.TimeoutMS < 0 || req.TimeoutMS > maxDiscoveryTimeoutMS {
		writeBadRequest(w, "timeoutMs must be between 0 and 30000")
		return
	}
	if req.Type != "" && !discovery.IsValidDeviceType(req.Type) {
		writeBadRequest(w, "unknown device type: "+string(req.Type))
		return
	}

	start := time.Now()
	devices := s.network.Discover(r.Context(), time.Duration(req.TimeoutMS)*time.Millisecond, discovery.Filter{
		Type:         req.Type,
		Manufacturer: req.Manufacturer,
	})

	took := time.Since(start)
	s.scans.record(len(devices), took)
	if s.hub != nil {
		s.hub.Broadcast(EventDiscoveryCompleted, map[string]any{
			"userId":     userIDFromContext(r.Context()),
			"kind":       "network",
			"count":      len(devices),
			"durationMs": took.Milliseconds(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleBluetoothDiscovery classifies the device the client's Bluetooth
// chooser returned. A user cancel is a normal 200 outcome; a platform or
// permission failure is a 502.
func (s *Server) handleBluetoothDiscovery(w http.ResponseWriter, r *http.Request) {
	var req bluetoothDiscoveryRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	probe := discovery.NewBluetoothProbe(discovery.ReportedPicker{
		Device:    req.Device,
		Cancelled: req.Cancelled,
		Error:     req.Error,
	})
	probe.SetLogger(s.logger)

	dev, ok, err := probe.RequestDevice(r.Context(), req.AcceptedServices)
	if err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, bluetoothDiscoveryResponse{Cancelled: true})
		return
	}
	writeJSON(w, http.StatusOK, bluetoothDiscoveryResponse{Device: &dev})
}

// handleConnectDevice attaches credentials to a discovered device. The
// outcome, including a refusal, is reported in the ConnectResult body.
func (s *Server) handleConnectDevice(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Device == nil {
		writeBadRequest(w, "device is required")
		return
	}

	result := s.connector.Connect(r.Context(), *req.Device, req.Credentials)
	writeJSON(w, http.StatusOK, result)
}
