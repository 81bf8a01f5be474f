package wsdiscovery

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html/charset"
)

const (
	// MulticastAddress is the WS-Discovery IPv4 multicast group
	MulticastAddress = "239.255.255.250"

	// MulticastPort is the WS-Discovery UDP port
	MulticastPort = 3702

	// DefaultProbeInterval is how often a session re-sends its probe
	DefaultProbeInterval = 500 * time.Millisecond
)

// probeTemplate is a SOAP 1.2 WS-Discovery Probe for ONVIF
// NetworkVideoTransmitter devices. %s is the message id.
const probeTemplate = `<?xml version="1.0" encoding="utf-8"?>` +
	`<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope" xmlns:a="http://schemas.xmlsoap.org/ws/2004/08/addressing">` +
	`<s:Header>` +
	`<a:Action s:mustUnderstand="1">http://schemas.xmlsoap.org/ws/2005/04/discovery/Probe</a:Action>` +
	`<a:MessageID>uuid:%s</a:MessageID>` +
	`<a:ReplyTo><a:Address>http://schemas.xmlsoap.org/ws/2004/08/addressing/role/anonymous</a:Address></a:ReplyTo>` +
	`<a:To s:mustUnderstand="1">urn:schemas-xmlsoap-org:ws:2005:04:discovery</a:To>` +
	`</s:Header>` +
	`<s:Body>` +
	`<Probe xmlns="http://schemas.xmlsoap.org/ws/2005/04/discovery">` +
	`<d:Types xmlns:d="http://schemas.xmlsoap.org/ws/2005/04/discovery" xmlns:dp0="http://www.onvif.org/ver10/network/wsdl">dp0:NetworkVideoTransmitter</d:Types>` +
	`</Probe>` +
	`</s:Body>` +
	`</s:Envelope>`

// MulticastEndpoint returns the well-known WS-Discovery destination
func MulticastEndpoint() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(MulticastAddress), Port: MulticastPort}
}

// NewProbeMessage renders the probe datagram for messageID.
// The nil UUID is rejected with ErrInvalidMessageID.
func NewProbeMessage(messageID uuid.UUID) ([]byte, error) {
	if messageID == uuid.Nil {
		return nil, ErrInvalidMessageID
	}
	return []byte(fmt.Sprintf(probeTemplate, messageID.String())), nil
}

// Envelope is a decoded SOAP envelope carrying ProbeMatches.
// Elements are matched by local name, so vendor namespace prefixes are
// irrelevant.
type Envelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Header  *Header  `xml:"Header"`
	Body    *Body    `xml:"Body"`
}

// Header holds the WS-Addressing fields of a reply
type Header struct {
	MessageID string `xml:"MessageID"`
	RelatesTo string `xml:"RelatesTo"`
	To        string `xml:"To"`
	Action    string `xml:"Action"`
}

// Body holds zero or more probe matches
type Body struct {
	ProbeMatches []ProbeMatch `xml:"ProbeMatches>ProbeMatch"`
}

// ProbeMatch is one matching service. The list fields are raw,
// space-separated text.
type ProbeMatch struct {
	EndpointReference EndpointReference `xml:"EndpointReference"`
	Types             string            `xml:"Types"`
	Scopes            string            `xml:"Scopes"`
	XAddrs            string            `xml:"XAddrs"`
	MetadataVersion   string            `xml:"MetadataVersion"`
}

// EndpointReference identifies the responding service, usually urn:uuid:...
type EndpointReference struct {
	Address string `xml:"Address"`
}

// DecodeProbeMatches decodes a received datagram. Malformed XML, a root
// other than Envelope, or a missing Header or Body all yield a decode
// error; callers discard such datagrams.
func DecodeProbeMatches(data []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, NewDecodeError("empty datagram", nil)
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	// Cameras regularly declare non UTF-8 encodings
	dec.CharsetReader = charset.NewReaderLabel

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, NewDecodeError("malformed SOAP envelope", err)
	}
	if env.Header == nil {
		return nil, NewDecodeError("SOAP envelope has no Header", nil)
	}
	if env.Body == nil {
		return nil, NewDecodeError("SOAP envelope has no Body", nil)
	}

	env.Header.RelatesTo = strings.TrimSpace(env.Header.RelatesTo)
	return &env, nil
}
