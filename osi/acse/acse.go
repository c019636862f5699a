package acse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/slonegd/mmsreport/ber"
)

// Result represents ACSE result codes
const (
	ResultAccept          = 0
	ResultRejectPermanent = 1
	ResultRejectTransient = 2
)

// 1.0.9506.2.3 (mms-abstract-syntax-version3)
var appContextNameMms = []byte{0x28, 0xca, 0x22, 0x02, 0x03}

// mmsIndirectReference is the presentation context id of MMS carried as
// indirect-reference inside ACSE user information
const mmsIndirectReference = 3

// IsoConnectionParameters represents ISO application layer addressing
type IsoConnectionParameters struct {
	RemoteAPTitle     []byte
	RemoteAEQualifier int32
	LocalAPTitle      []byte
	LocalAEQualifier  int32
}

// defaultIsoParameters returns the AP titles and AE qualifiers observed
// on real IEDs
func defaultIsoParameters() *IsoConnectionParameters {
	return &IsoConnectionParameters{
		RemoteAPTitle:     []byte{0x29, 0x01, 0x87, 0x67, 0x01},
		RemoteAEQualifier: 12,
		LocalAPTitle:      []byte{0x29, 0x01, 0x87, 0x67},
		LocalAEQualifier:  12,
	}
}

// BuildAARQ creates an AARQ (Association Request) PDU carrying the MMS
// initiate request as user information
func BuildAARQ(userData []byte) []byte {
	return CreateAssociateRequestMessage(defaultIsoParameters(), userData)
}

// CreateAssociateRequestMessage creates an AARQ (Association Request) PDU
// Based on AcseConnection_createAssociateRequestMessage from acse.c
func CreateAssociateRequestMessage(isoParams *IsoConnectionParameters, payload []byte) []byte {
	payloadLength := len(payload)

	// Calculate content length
	contentLength := 0

	// Application context name (fixed: 9 bytes)
	contentLength += 9

	// Called AP title and AE qualifier
	if isoParams != nil && len(isoParams.RemoteAPTitle) > 0 {
		contentLength += 4 + len(isoParams.RemoteAPTitle)
		contentLength += 4 + ber.Int32DetermineEncodedSize(isoParams.RemoteAEQualifier)
	}

	// Calling AP title and AE qualifier
	if isoParams != nil && len(isoParams.LocalAPTitle) > 0 {
		contentLength += 4 + len(isoParams.LocalAPTitle)
		contentLength += 4 + ber.Int32DetermineEncodedSize(isoParams.LocalAEQualifier)
	}

	// User information: single ASN1 type
	userInfoLength := payloadLength
	userInfoLength += 1                                              // tag
	userInfoLength += ber.DetermineLengthSize(uint32(payloadLength)) // length

	// Indirect reference
	userInfoLength += 1 // tag
	userInfoLength += 2 // length + value (1 byte)

	// Association data
	assocDataLength := userInfoLength
	userInfoLength += ber.DetermineLengthSize(uint32(assocDataLength))
	userInfoLength += 1

	// User information wrapper
	userInfoLen := userInfoLength
	userInfoLength += ber.DetermineLengthSize(uint32(userInfoLength))
	userInfoLength += 1

	contentLength += userInfoLength

	buffer := make([]byte, contentLength+20)
	bufPos := 0

	// Encode AARQ tag and length
	bufPos = ber.EncodeTL(ber.Application0Constructed, uint32(contentLength), buffer, bufPos)

	// Application context name
	bufPos = ber.EncodeTL(ber.ContextSpecific1Constructed, 7, buffer, bufPos)
	bufPos = ber.EncodeTL(ber.ObjectIdentifier, 5, buffer, bufPos)
	copy(buffer[bufPos:], appContextNameMms)
	bufPos += 5

	// Called AP title and AE qualifier
	if isoParams != nil && len(isoParams.RemoteAPTitle) > 0 {
		bufPos = ber.EncodeTL(ber.ContextSpecific2Constructed, uint32(len(isoParams.RemoteAPTitle)+2), buffer, bufPos)
		bufPos = ber.EncodeTL(ber.ObjectIdentifier, uint32(len(isoParams.RemoteAPTitle)), buffer, bufPos)
		copy(buffer[bufPos:], isoParams.RemoteAPTitle)
		bufPos += len(isoParams.RemoteAPTitle)

		calledAEQualifierLength := ber.Int32DetermineEncodedSize(isoParams.RemoteAEQualifier)
		bufPos = ber.EncodeTL(ber.ContextSpecific3Constructed, uint32(calledAEQualifierLength+2), buffer, bufPos)
		bufPos = ber.EncodeInt32WithTL(ber.Integer, isoParams.RemoteAEQualifier, buffer, bufPos)
	}

	// Calling AP title and AE qualifier
	if isoParams != nil && len(isoParams.LocalAPTitle) > 0 {
		bufPos = ber.EncodeTL(ber.ContextSpecific6Constructed, uint32(len(isoParams.LocalAPTitle)+2), buffer, bufPos)
		bufPos = ber.EncodeTL(ber.ObjectIdentifier, uint32(len(isoParams.LocalAPTitle)), buffer, bufPos)
		copy(buffer[bufPos:], isoParams.LocalAPTitle)
		bufPos += len(isoParams.LocalAPTitle)

		callingAEQualifierLength := ber.Int32DetermineEncodedSize(isoParams.LocalAEQualifier)
		bufPos = ber.EncodeTL(ber.ContextSpecific7Constructed, uint32(callingAEQualifierLength+2), buffer, bufPos)
		bufPos = ber.EncodeInt32WithTL(ber.Integer, isoParams.LocalAEQualifier, buffer, bufPos)
	}

	// User information
	bufPos = ber.EncodeTL(ber.ContextSpecific30Constructed, uint32(userInfoLen), buffer, bufPos)

	// Association data
	bufPos = ber.EncodeTL(ber.ExternalConstructed, uint32(assocDataLength), buffer, bufPos)

	// Indirect reference
	bufPos = ber.EncodeTL(ber.Integer, 1, buffer, bufPos)
	buffer[bufPos] = mmsIndirectReference
	bufPos++

	// Single ASN1 type
	bufPos = ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(payloadLength), buffer, bufPos)

	// Append payload
	buffer = append(buffer[:bufPos], payload...)
	bufPos += len(payload)

	return buffer[:bufPos]
}

// BuildAARE creates an AARE (Association Response) PDU carrying the MMS
// initiate response as user information. Used by the server side.
// Based on AcseConnection_createAssociateResponseMessage from acse.c
func BuildAARE(acseResult uint8, payload []byte) []byte {
	appContextLength := 9
	resultLength := 5
	resultDiagnosticLength := 7

	fixedContentLength := appContextLength + resultLength + resultDiagnosticLength

	payloadLength := len(payload)

	// User information: single ASN1 type
	variableContentLength := payloadLength
	variableContentLength += 1
	variableContentLength += ber.DetermineLengthSize(uint32(payloadLength))

	// Indirect reference
	variableContentLength += 3 // tag + length + value (1 byte)

	// Association data
	assocDataLength := variableContentLength
	variableContentLength += ber.DetermineLengthSize(uint32(assocDataLength))
	variableContentLength += 1

	// User information wrapper
	userInfoLength := variableContentLength
	variableContentLength += ber.DetermineLengthSize(uint32(userInfoLength))
	variableContentLength += 1

	contentLength := fixedContentLength + variableContentLength

	buffer := make([]byte, contentLength+10)
	bufPos := 0

	// Encode AARE tag and length
	bufPos = ber.EncodeTL(ber.Tag(AARE), uint32(contentLength), buffer, bufPos)

	// Application context name
	bufPos = ber.EncodeTL(0xa1, 7, buffer, bufPos)
	bufPos = ber.EncodeTL(0x06, 5, buffer, bufPos)
	copy(buffer[bufPos:], appContextNameMms)
	bufPos += 5

	// Result
	bufPos = ber.EncodeTL(0xa2, 3, buffer, bufPos)
	bufPos = ber.EncodeTL(0x02, 1, buffer, bufPos)
	buffer[bufPos] = acseResult
	bufPos++

	// Result source diagnostic: service-user (null)
	bufPos = ber.EncodeTL(0xa3, 5, buffer, bufPos)
	bufPos = ber.EncodeTL(0xa1, 3, buffer, bufPos)
	bufPos = ber.EncodeTL(0x02, 1, buffer, bufPos)
	buffer[bufPos] = 0
	bufPos++

	// User information
	bufPos = ber.EncodeTL(0xbe, uint32(userInfoLength), buffer, bufPos)

	// Association data
	bufPos = ber.EncodeTL(ber.ExternalConstructed, uint32(assocDataLength), buffer, bufPos)

	// Indirect reference
	bufPos = ber.EncodeTL(0x02, 1, buffer, bufPos)
	buffer[bufPos] = mmsIndirectReference
	bufPos++

	// Single ASN1 type
	bufPos = ber.EncodeTL(0xa0, uint32(payloadLength), buffer, bufPos)

	// Append payload
	buffer = append(buffer[:bufPos], payload...)
	bufPos += len(payload)

	return buffer[:bufPos]
}

// ACSEPDUType represents the type of ACSE PDU
type ACSEPDUType uint8

const (
	AARQ ACSEPDUType = 0x60 // AARQ (Association Request)
	AARE ACSEPDUType = 0x61 // AARE (Association Response)
	RLRQ ACSEPDUType = 0x62 // RLRQ (Release Request)
	RLRE ACSEPDUType = 0x63 // RLRE (Release Response)
	ABRT ACSEPDUType = 0x64 // ABRT (Abort)
)

// ACSEPDU represents a parsed ACSE Protocol Data Unit
type ACSEPDU struct {
	Type                   ACSEPDUType
	ApplicationContextName []byte // OID (e.g., 1.0.9506.2.3 for MMS)
	Result                 uint32 // For AARE: 0=accepted, 1=reject-permanent, 2=reject-transient
	ResultSourceDiagnostic uint32 // For AARE: 1=service-user, 2=service-provider
	IndirectReference      uint32 // Indirect reference from user information
	Encoding               uint8  // 0=single-ASN1-type
	Data                   []byte // User data (MMS PDU)
}

// ParseACSEPDU parses an AARQ or AARE PDU and extracts the user
// information payload
// Based on AcseConnection_parseMessage, parseAarqPdu and parseAarePdu from acse.c
func ParseACSEPDU(data []byte) (*ACSEPDU, error) {
	if len(data) < 2 {
		return nil, errors.New("ACSE PDU too short")
	}

	pdu := &ACSEPDU{Type: ACSEPDUType(data[0])}

	bufPos, _, err := ber.DecodeLength(data, 1, len(data))
	if err != nil {
		return nil, fmt.Errorf("invalid ACSE message: %w", err)
	}

	switch pdu.Type {
	case AARQ, AARE:
		if err := pdu.parseAssociateContent(data, bufPos, len(data)); err != nil {
			return nil, err
		}
		return pdu, nil
	case RLRQ, RLRE, ABRT:
		return pdu, nil
	default:
		return nil, fmt.Errorf("unknown ACSE message type: 0x%02x", data[0])
	}
}

// parseAssociateContent walks the fields shared by AARQ and AARE
func (p *ACSEPDU) parseAssociateContent(buffer []byte, bufPos, maxBufPos int) error {
	userInfoValid := false

	for bufPos < maxBufPos {
		tag := buffer[bufPos]
		bufPos++

		newPos, length, err := ber.DecodeLength(buffer, bufPos, maxBufPos)
		if err != nil {
			return fmt.Errorf("invalid PDU: %w", err)
		}
		bufPos = newPos

		if length == 0 {
			continue
		}

		if bufPos+length > maxBufPos {
			return errors.New("invalid PDU: buffer overflow")
		}

		switch tag {
		case 0xa1: // application context name
			p.parseApplicationContextName(buffer[bufPos : bufPos+length])

		case 0xa2: // result (AARE)
			if p.Type == AARE && length >= 3 && buffer[bufPos] == 0x02 {
				intLen := int(buffer[bufPos+1])
				if 2+intLen <= length {
					p.Result = ber.DecodeUint32(buffer, intLen, bufPos+2)
				}
			}

		case 0xa3: // result source diagnostic (AARE)
			// service-user (0xa1) или service-provider (0xa2)
			if p.Type == AARE && length >= 2 {
				switch buffer[bufPos] {
				case 0xa1:
					p.ResultSourceDiagnostic = 1
				case 0xa2:
					p.ResultSourceDiagnostic = 2
				}
			}

		case 0xbe: // user information
			if buffer[bufPos] == byte(ber.ExternalConstructed) {
				assocPos, assocLength, err := ber.DecodeLength(buffer, bufPos+1, maxBufPos)
				if err != nil {
					return fmt.Errorf("invalid PDU: %w", err)
				}
				if err := p.parseUserInformation(buffer, assocPos, assocPos+assocLength, &userInfoValid); err != nil {
					return fmt.Errorf("invalid PDU: %w", err)
				}
			}

		default:
			// AP titles, AE qualifiers, authentication: skip
		}

		bufPos += length
	}

	if !userInfoValid {
		return errors.New("user info invalid")
	}

	return nil
}

// parseApplicationContextName extracts the OID value from the
// application-context-name field
func (p *ACSEPDU) parseApplicationContextName(content []byte) {
	if len(content) < 2 || content[0] != 0x06 {
		return
	}

	oidLength := int(content[1])
	if 2+oidLength > len(content) {
		return
	}

	p.ApplicationContextName = make([]byte, oidLength)
	copy(p.ApplicationContextName, content[2:2+oidLength])
}

// parseUserInformation parses association data: indirect-reference and
// single-ASN1-type encoding with the MMS payload
func (p *ACSEPDU) parseUserInformation(buffer []byte, bufPos, maxBufPos int, userInfoValid *bool) error {
	hasIndirectReference := false
	isDataValid := false

	for bufPos < maxBufPos {
		tag := buffer[bufPos]
		bufPos++

		newPos, length, err := ber.DecodeLength(buffer, bufPos, maxBufPos)
		if err != nil {
			return err
		}
		bufPos = newPos

		if length == 0 {
			continue
		}

		if bufPos+length > maxBufPos {
			return errors.New("buffer overflow")
		}

		switch tag {
		case 0x02: // indirect-reference
			p.IndirectReference = ber.DecodeUint32(buffer, length, bufPos)
			hasIndirectReference = true

		case 0xa0: // encoding (single-ASN1-type)
			p.Encoding = 0
			p.Data = buffer[bufPos : bufPos+length]
			isDataValid = true

		default: // ignore unknown tag
		}

		bufPos += length
	}

	*userInfoValid = hasIndirectReference && isDataValid

	return nil
}

// String implements fmt.Stringer for ACSEPDU
func (p *ACSEPDU) String() string {
	var builder strings.Builder

	typeStr := ""
	switch p.Type {
	case AARQ:
		typeStr = "AARQ"
	case AARE:
		typeStr = "AARE"
	case RLRQ:
		typeStr = "RLRQ"
	case RLRE:
		typeStr = "RLRE"
	case ABRT:
		typeStr = "ABRT"
	default:
		typeStr = fmt.Sprintf("Unknown(0x%02x)", uint8(p.Type))
	}

	builder.WriteString("ACSEPDU{Type: ")
	builder.WriteString(typeStr)
	fmt.Fprintf(&builder, " (0x%02x)", uint8(p.Type))

	if len(p.ApplicationContextName) > 0 {
		builder.WriteString(", ApplicationContextName: ")
		builder.WriteString(formatOID(p.ApplicationContextName))
	}

	if p.Type == AARE {
		resultStr := ""
		switch p.Result {
		case 0:
			resultStr = "accepted"
		case 1:
			resultStr = "reject-permanent"
		case 2:
			resultStr = "reject-transient"
		default:
			resultStr = fmt.Sprintf("unknown(%d)", p.Result)
		}
		fmt.Fprintf(&builder, ", Result: %d (%s)", p.Result, resultStr)

		if p.ResultSourceDiagnostic != 0 {
			diagStr := fmt.Sprintf("%d", p.ResultSourceDiagnostic)
			if p.ResultSourceDiagnostic == 1 {
				diagStr = "service-user (1)"
			}
			fmt.Fprintf(&builder, ", ResultSourceDiagnostic: %s", diagStr)
		}
	}

	if p.IndirectReference != 0 {
		fmt.Fprintf(&builder, ", IndirectReference: %d", p.IndirectReference)
	}

	fmt.Fprintf(&builder, ", Encoding: %d (single-ASN1-type)", p.Encoding)
	fmt.Fprintf(&builder, ", DataLength: %d}", len(p.Data))

	return builder.String()
}

// formatOID decodes an OID value and renders it in dotted notation
func formatOID(oid []byte) string {
	if len(oid) == 0 {
		return "[]"
	}

	var decoded ber.ItuObjectIdentifier
	ber.DecodeOID(oid, 0, len(oid), &decoded)

	parts := make([]string, decoded.ArcCount)
	for i := 0; i < decoded.ArcCount; i++ {
		parts[i] = strconv.FormatUint(uint64(decoded.Arc[i]), 10)
	}
	dotted := strings.Join(parts, ".")

	switch dotted {
	case "1.0.9506.2.3":
		return dotted + " (MMS)"
	case "2.2.1.0.1":
		return dotted + " (id-as-acse)"
	}
	return dotted
}
