package urls

// Reference links printed alongside discovery troubleshooting output

// TroubleshootingGuide covers firewalls, multicast routing and cameras
// that never answer probes.
const TroubleshootingGuide = "https://github.com/muurk/onvifdiscovery#troubleshooting"

// WSDiscoverySpec is the OASIS WS-Discovery 1.1 specification
const WSDiscoverySpec = "https://docs.oasis-open.org/ws-dd/discovery/1.1/os/wsdd-discovery-1.1-spec-os.html"

// ONVIFCoreSpec describes the ONVIF scope URIs (hardware/, name/, mfr/)
// that manufacturer and model are read from.
const ONVIFCoreSpec = "https://www.onvif.org/specs/core/ONVIF-Core-Specification.pdf"
