package protocol

import "strconv"

// CloseCode is the numeric close code a transport reports when the
// underlying socket goes away, whether from a raw WebSocket-level close or
// a server-level Centrifuge disconnect. It drives the Connection Manager's
// reconnect policy.
type CloseCode int

const (
	CloseNormalClosure           CloseCode = 1000
	CloseGoingAway               CloseCode = 1001
	CloseProtocolError           CloseCode = 1002
	CloseUnsupportedData         CloseCode = 1003
	CloseNoStatusReceived        CloseCode = 1005
	CloseAbnormalClosure         CloseCode = 1006
	CloseInvalidFramePayloadData CloseCode = 1007
	ClosePolicyViolation         CloseCode = 1008
	CloseMessageTooBig           CloseCode = 1009
	CloseMandatoryExtension      CloseCode = 1010
	CloseInternalServerErr       CloseCode = 1011
	CloseTLSHandshake            CloseCode = 1015

	// CloseForceNoReconnect is a server-side disconnect that explicitly
	// tells the client not to retry, e.g. an administrative kick.
	CloseForceNoReconnect CloseCode = 3000

	// CloseInvalidToken is returned when the server rejects the token
	// presented in a Connect command outright. Irrecoverable: retrying
	// with the same token cannot succeed.
	CloseInvalidToken CloseCode = 3500

	// CloseTokenVerificationFailed is a special case: the server could not
	// verify the token against its current signing material (e.g. mid
	// key-rotation). It is reconnectable, but on a fixed delay rather than
	// the normal backoff curve, and does not reset the backoff sequence.
	CloseTokenVerificationFailed CloseCode = 4333
)

// Reconnectable reports whether the Connection Manager should attempt to
// re-establish the connection after seeing this close code. A small set of
// codes are defined as irrecoverable: the WebSocket-level codes that
// signal a protocol mismatch rather than a transient failure, and the two
// Centrifuge codes that mean "this token/session is permanently bad".
func (c CloseCode) Reconnectable() bool {
	switch c {
	case CloseUnsupportedData, CloseMandatoryExtension, CloseForceNoReconnect, CloseInvalidToken:
		return false
	default:
		return true
	}
}

func (c CloseCode) String() string {
	switch c {
	case CloseNormalClosure:
		return "normal_closure"
	case CloseGoingAway:
		return "going_away"
	case CloseProtocolError:
		return "protocol_error"
	case CloseUnsupportedData:
		return "unsupported_data"
	case CloseNoStatusReceived:
		return "no_status_received"
	case CloseAbnormalClosure:
		return "abnormal_closure"
	case CloseInvalidFramePayloadData:
		return "invalid_frame_payload_data"
	case ClosePolicyViolation:
		return "policy_violation"
	case CloseMessageTooBig:
		return "message_too_big"
	case CloseMandatoryExtension:
		return "mandatory_extension"
	case CloseInternalServerErr:
		return "internal_server_error"
	case CloseTLSHandshake:
		return "tls_handshake"
	case CloseForceNoReconnect:
		return "force_no_reconnect"
	case CloseInvalidToken:
		return "invalid_token"
	case CloseTokenVerificationFailed:
		return "token_verification_failed"
	default:
		return "code_" + strconv.Itoa(int(c))
	}
}
