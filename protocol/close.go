package protocol

import "strconv"

// CloseReason is the numeric code attached to a closing connection.
// The server itself produces CloseUnsupportedData, CloseInternalError and,
// on shutdown, CloseGoingAway; the rest are understood when a peer sends them.
type CloseReason int

const (
	CloseNormal                  CloseReason = 1000
	CloseGoingAway               CloseReason = 1001
	CloseProtocolError           CloseReason = 1002
	CloseUnsupportedData         CloseReason = 1003
	CloseAbnormalClosure         CloseReason = 1006
	CloseInvalidFramePayloadData CloseReason = 1007
	ClosePolicyViolation         CloseReason = 1008
	CloseMessageTooBig           CloseReason = 1009
	CloseMissingExtension        CloseReason = 1010
	CloseInternalError           CloseReason = 1011
	CloseServiceRestart          CloseReason = 1012
	CloseTryAgainLater           CloseReason = 1013
	CloseBadGateway              CloseReason = 1014
	CloseTLSHandshake            CloseReason = 1015
)

var closeReasonNames = map[CloseReason]string{
	CloseNormal:                  "Normal",
	CloseGoingAway:               "GoingAway",
	CloseProtocolError:           "ProtocolError",
	CloseUnsupportedData:         "UnsupportedData",
	CloseAbnormalClosure:         "AbnormalClosure",
	CloseInvalidFramePayloadData: "InvalidFramePayloadData",
	ClosePolicyViolation:         "PolicyViolation",
	CloseMessageTooBig:           "MessageTooBig",
	CloseMissingExtension:        "MissingExtension",
	CloseInternalError:           "InternalError",
	CloseServiceRestart:          "ServiceRestart",
	CloseTryAgainLater:           "TryAgainLater",
	CloseBadGateway:              "BadGateway",
	CloseTLSHandshake:            "TlsHandshake",
}

func (r CloseReason) Code() int {
	return int(r)
}

func (r CloseReason) String() string {
	if name, ok := closeReasonNames[r]; ok {
		return name
	}
	return "CloseReason(" + strconv.Itoa(int(r)) + ")"
}
