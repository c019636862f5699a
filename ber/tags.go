package ber

// Tag is a single-octet BER tag: class bits, the constructed bit and
// the tag number packed together as they appear on the wire
type Tag byte

// Tag octet bits (X.690 8.1.2)
const (
	Constructed     Tag = 0x20 // contents are nested TLV elements
	Application     Tag = 0x40
	ContextSpecific Tag = 0x80
)

// Universal tags used by the OSI and MMS codecs
const (
	Integer          Tag = 0x02
	ObjectIdentifier Tag = 0x06
	External         Tag = 0x08
	Sequence         Tag = 0x10
	VisibleString    Tag = 0x1A

	ExternalConstructed = External | Constructed // 0x28
	SequenceConstructed = Sequence | Constructed // 0x30
)

// Application0Constructed is the AARQ APDU tag of ACSE
const Application0Constructed = Application | Constructed | 0 // 0x60

// Context-specific tags: the number is the field position in the
// enclosing SEQUENCE or CHOICE of the protocol definition
const (
	ContextSpecific0Constructed  = ContextSpecific | Constructed | 0  // 0xA0
	ContextSpecific1Constructed  = ContextSpecific | Constructed | 1  // 0xA1
	ContextSpecific2Constructed  = ContextSpecific | Constructed | 2  // 0xA2
	ContextSpecific3Constructed  = ContextSpecific | Constructed | 3  // 0xA3
	ContextSpecific4Constructed  = ContextSpecific | Constructed | 4  // 0xA4
	ContextSpecific5Constructed  = ContextSpecific | Constructed | 5  // 0xA5
	ContextSpecific6Constructed  = ContextSpecific | Constructed | 6  // 0xA6
	ContextSpecific7Constructed  = ContextSpecific | Constructed | 7  // 0xA7
	ContextSpecific30Constructed = ContextSpecific | Constructed | 30 // 0xBE

	ContextSpecific0Primitive = ContextSpecific | 0 // 0x80
	ContextSpecific1Primitive = ContextSpecific | 1 // 0x81
	ContextSpecific2Primitive = ContextSpecific | 2 // 0x82
	ContextSpecific3Primitive = ContextSpecific | 3 // 0x83
)
