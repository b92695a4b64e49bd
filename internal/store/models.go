package store

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ID identifies a config. The backend sends numbers; strings are accepted too.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("invalid config id %s", data)
	}
	*id = ID(data)
	return nil
}

// MarshalJSON writes canonical integers as numbers and everything else,
// "007" or "+5" included, as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

type Status string

const (
	StatusUntested Status = "untested"
	StatusActive   Status = "active"
	StatusSlow     Status = "slow"
	StatusDead     Status = "dead"
)

// ParseStatus maps unknown values to untested.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive
	case StatusSlow:
		return StatusSlow
	case StatusDead:
		return StatusDead
	default:
		return StatusUntested
	}
}

type Protocol string

const (
	ProtocolVMess       Protocol = "vmess"
	ProtocolVLess       Protocol = "vless"
	ProtocolShadowsocks Protocol = "shadowsocks"
	ProtocolTrojan      Protocol = "trojan"
	ProtocolUnknown     Protocol = "unknown"
)

var protocolPrefixes = []struct {
	prefix   string
	protocol Protocol
}{
	{"vmess://", ProtocolVMess},
	{"vless://", ProtocolVLess},
	{"ss://", ProtocolShadowsocks},
	{"trojan://", ProtocolTrojan},
}

// ClassifyURL labels a connection string by its scheme prefix only.
func ClassifyURL(configURL string) Protocol {
	for _, p := range protocolPrefixes {
		if strings.HasPrefix(configURL, p.prefix) {
			return p.protocol
		}
	}
	return ProtocolUnknown
}

func (p Protocol) Label() string {
	switch p {
	case ProtocolVMess:
		return "VMess"
	case ProtocolVLess:
		return "VLess"
	case ProtocolShadowsocks:
		return "Shadowsocks"
	case ProtocolTrojan:
		return "Trojan"
	default:
		return string(ProtocolUnknown)
	}
}

// ConfigRecord is one monitored endpoint.
//
// Status, Ping and LastTestedAt move together: Status is untested exactly
// when the other two are nil.
type ConfigRecord struct {
	ID            ID         `json:"id"`
	Name          string     `json:"name"`
	Server        string     `json:"server"`
	Port          int        `json:"port"`
	Protocol      string     `json:"protocol"`
	ConfigURL     string     `json:"config_url"`
	Status        Status     `json:"status"`
	Ping          *float64   `json:"ping"`
	LastTestedAt  *time.Time `json:"last_tested"`
	Country       *string    `json:"country,omitempty"`
	DownloadSpeed *float64   `json:"download_speed,omitempty"`
}

// Kind classifies ConfigURL.
func (r ConfigRecord) Kind() Protocol {
	return ClassifyURL(r.ConfigURL)
}

func (r ConfigRecord) clone() ConfigRecord {
	c := r
	if r.Ping != nil {
		p := *r.Ping
		c.Ping = &p
	}
	if r.LastTestedAt != nil {
		t := *r.LastTestedAt
		c.LastTestedAt = &t
	}
	if r.Country != nil {
		s := *r.Country
		c.Country = &s
	}
	if r.DownloadSpeed != nil {
		d := *r.DownloadSpeed
		c.DownloadSpeed = &d
	}
	return c
}

// setResult writes the test-result fields as one unit.
func (r *ConfigRecord) setResult(status Status, ping *float64, at time.Time) {
	r.Status = ParseStatus(string(status))
	if r.Status == StatusUntested {
		r.Ping = nil
		r.LastTestedAt = nil
		return
	}
	var p float64
	if ping != nil {
		p = *ping
	}
	r.Ping = &p
	t := at
	r.LastTestedAt = &t
}

type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Slow     int `json:"slow"`
	Dead     int `json:"dead"`
	Untested int `json:"untested"`
}

func (s *Stats) add(status Status) {
	s.Total++
	switch status {
	case StatusActive:
		s.Active++
	case StatusSlow:
		s.Slow++
	case StatusDead:
		s.Dead++
	default:
		s.Untested++
	}
}
