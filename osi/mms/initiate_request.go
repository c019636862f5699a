package mms

import (
	"fmt"

	"github.com/slonegd/mmsreport/ber"
)

// ServiceSupportedBit - номер бита в битовой маске servicesSupported
// (ISO/IEC 9506-2, ServiceSupportOptions). Нумерация MSB-first:
// бит 0 - старший бит первого байта маски
type ServiceSupportedBit uint

const (
	Status ServiceSupportedBit = iota
	GetNameList
	Identify
	Rename
	Read
	Write
	GetVariableAccessAttributes
	DefineNamedVariable
	DefineScatteredAccess
	GetScatteredAccessAttributes
	DeleteVariableAccess
	DefineNamedVariableList
	GetNamedVariableListAttributes
	DeleteNamedVariableList
	DefineNamedType
	GetNamedTypeAttributes
	DeleteNamedType
	Input
	Output
	TakeControl
	RelinquishControl
	DefineSemaphore
	DeleteSemaphore
	ReportSemaphoreStatus
	ReportPoolSemaphoreStatus
	ReportSemaphoreEntryStatus
	InitiateDownloadSequence
	DownloadSegment
	TerminateDownloadSequence
	InitiateUploadSequence
	UploadSegment
	TerminateUploadSequence
	RequestDomainDownload
	RequestDomainUpload
	LoadDomainContent
	StoreDomainContent
	DeleteDomain
	GetDomainAttributes
	CreateProgramInvocation
	DeleteProgramInvocation
	Start
	Stop
	Resume
	Reset
	Kill
	GetProgramInvocationAttributes
	ObtainFile
	DefineEventCondition
	DeleteEventCondition
	GetEventConditionAttributes
	ReportEventConditionStatus
	AlterEventConditionMonitoring
	TriggerEvent
	DefineEventAction
	DeleteEventAction
	GetEventActionAttributes
	ReportActionStatus
	DefineEventEnrollment
	DeleteEventEnrollment
	AlterEventEnrollment
	ReportEventEnrollmentStatus
	GetEventEnrollmentAttributes
	AcknowledgeEventNotification
	GetAlarmSummary
	GetAlarmEnrollmentSummary
	ReadJournal
	WriteJournal
	InitializeJournal
	ReportJournalStatus
	CreateJournal
	DeleteJournal
	GetCapabilityList
	FileOpen
	FileRead
	FileClose
	FileRename
	FileDelete
	FileDirectory
	UnsolicitedStatus
	InformationReportBit
	EventNotification
	AttachToEventCondition
	AttachToSemaphore
	Conclude
	Cancel
)

// имена битов services-supported, индекс - номер бита
var serviceSupportedNames = [...]string{
	// службы VMD
	Status:      "Status",
	GetNameList: "GetNameList",
	Identify:    "Identify",
	Rename:      "Rename",

	// доступ к переменным
	Read:                           "Read",
	Write:                          "Write",
	GetVariableAccessAttributes:    "GetVariableAccessAttributes",
	DefineNamedVariable:            "DefineNamedVariable",
	DefineScatteredAccess:          "DefineScatteredAccess",
	GetScatteredAccessAttributes:   "GetScatteredAccessAttributes",
	DeleteVariableAccess:           "DeleteVariableAccess",
	DefineNamedVariableList:        "DefineNamedVariableList",
	GetNamedVariableListAttributes: "GetNamedVariableListAttributes",
	DeleteNamedVariableList:        "DeleteNamedVariableList",
	DefineNamedType:                "DefineNamedType",
	GetNamedTypeAttributes:         "GetNamedTypeAttributes",
	DeleteNamedType:                "DeleteNamedType",

	// операторский ввод-вывод
	Input:  "Input",
	Output: "Output",

	// семафоры
	TakeControl:                "TakeControl",
	RelinquishControl:          "RelinquishControl",
	DefineSemaphore:            "DefineSemaphore",
	DeleteSemaphore:            "DeleteSemaphore",
	ReportSemaphoreStatus:      "ReportSemaphoreStatus",
	ReportPoolSemaphoreStatus:  "ReportPoolSemaphoreStatus",
	ReportSemaphoreEntryStatus: "ReportSemaphoreEntryStatus",

	// домены
	InitiateDownloadSequence:  "InitiateDownloadSequence",
	DownloadSegment:           "DownloadSegment",
	TerminateDownloadSequence: "TerminateDownloadSequence",
	InitiateUploadSequence:    "InitiateUploadSequence",
	UploadSegment:             "UploadSegment",
	TerminateUploadSequence:   "TerminateUploadSequence",
	RequestDomainDownload:     "RequestDomainDownload",
	RequestDomainUpload:       "RequestDomainUpload",
	LoadDomainContent:         "LoadDomainContent",
	StoreDomainContent:        "StoreDomainContent",
	DeleteDomain:              "DeleteDomain",
	GetDomainAttributes:       "GetDomainAttributes",

	// вызов программ
	CreateProgramInvocation:        "CreateProgramInvocation",
	DeleteProgramInvocation:        "DeleteProgramInvocation",
	Start:                          "Start",
	Stop:                           "Stop",
	Resume:                         "Resume",
	Reset:                          "Reset",
	Kill:                           "Kill",
	GetProgramInvocationAttributes: "GetProgramInvocationAttributes",
	ObtainFile:                     "ObtainFile",

	// события
	DefineEventCondition:          "DefineEventCondition",
	DeleteEventCondition:          "DeleteEventCondition",
	GetEventConditionAttributes:   "GetEventConditionAttributes",
	ReportEventConditionStatus:    "ReportEventConditionStatus",
	AlterEventConditionMonitoring: "AlterEventConditionMonitoring",
	TriggerEvent:                  "TriggerEvent",
	DefineEventAction:             "DefineEventAction",
	DeleteEventAction:             "DeleteEventAction",
	GetEventActionAttributes:      "GetEventActionAttributes",
	ReportActionStatus:            "ReportActionStatus",
	DefineEventEnrollment:         "DefineEventEnrollment",
	DeleteEventEnrollment:         "DeleteEventEnrollment",
	AlterEventEnrollment:          "AlterEventEnrollment",
	ReportEventEnrollmentStatus:   "ReportEventEnrollmentStatus",
	GetEventEnrollmentAttributes:  "GetEventEnrollmentAttributes",
	AcknowledgeEventNotification:  "AcknowledgeEventNotification",
	GetAlarmSummary:               "GetAlarmSummary",
	GetAlarmEnrollmentSummary:     "GetAlarmEnrollmentSummary",

	// журналы
	ReadJournal:         "ReadJournal",
	WriteJournal:        "WriteJournal",
	InitializeJournal:   "InitializeJournal",
	ReportJournalStatus: "ReportJournalStatus",
	CreateJournal:       "CreateJournal",
	DeleteJournal:       "DeleteJournal",
	GetCapabilityList:   "GetCapabilityList",

	// файлы
	FileOpen:      "FileOpen",
	FileRead:      "FileRead",
	FileClose:     "FileClose",
	FileRename:    "FileRename",
	FileDelete:    "FileDelete",
	FileDirectory: "FileDirectory",

	// неподтверждаемые службы и управление ассоциацией
	UnsolicitedStatus:      "UnsolicitedStatus",
	InformationReportBit:   "InformationReport",
	EventNotification:      "EventNotification",
	AttachToEventCondition: "AttachToEventCondition",
	AttachToSemaphore:      "AttachToSemaphore",
	Conclude:               "Conclude",
	Cancel:                 "Cancel",
}

func (b ServiceSupportedBit) String() string {
	if int(b) < len(serviceSupportedNames) {
		return serviceSupportedNames[b]
	}
	return fmt.Sprintf("ServiceSupportedBit(%d)", uint(b))
}

// ParameterCBBBit - номер бита в битовой маске proposedParameterCBB
// (ISO/IEC 9506-2, ParameterSupportOptions). Бит 9 в стандарте не назначен
type ParameterCBBBit uint

const (
	Str1 ParameterCBBBit = iota
	Str2
	Vnam
	Valt
	Vadr
	Vsca
	Tpy
	Vlis
	Real
	SpareBit9
	Cei
)

var parameterCBBNames = [...]string{
	Str1:      "Str1",
	Str2:      "Str2",
	Vnam:      "Vnam",
	Valt:      "Valt",
	Vadr:      "Vadr",
	Vsca:      "Vsca",
	Tpy:       "Tpy",
	Vlis:      "Vlis",
	Real:      "Real",
	SpareBit9: "SpareBit9",
	Cei:       "Cei",
}

func (b ParameterCBBBit) String() string {
	if int(b) < len(parameterCBBNames) {
		return parameterCBBNames[b]
	}
	return fmt.Sprintf("ParameterCBBBit(%d)", uint(b))
}

// Размеры битовых масок фиксированы в MMS: маска кодируется целиком,
// неиспользуемые биты в конце дополняются нулями
const (
	// ServicesSupportedCallingBitmaskSize - размер маски servicesSupported
	// в байтах: 85 бит данных + 3 бита выравнивания
	ServicesSupportedCallingBitmaskSize = 11
	servicesSupportedPaddingBits        = 3

	// ProposedParameterCBBBitmaskSize - размер маски proposedParameterCBB
	// в байтах: 11 бит данных + 5 бит выравнивания
	ProposedParameterCBBBitmaskSize = 2
	parameterCBBPaddingBits         = 5
)

// InitiateRequest содержит параметры согласования MMS ассоциации,
// отправляемые в initiate-RequestPDU
type InitiateRequest struct {
	// LocalDetailCalling - максимальный размер MMS PDU, который готов принять клиент
	LocalDetailCalling uint32
	// ProposedMaxServOutstandingCalling - максимум одновременных запросов от клиента
	ProposedMaxServOutstandingCalling uint32
	// ProposedMaxServOutstandingCalled - максимум одновременных запросов от сервера
	ProposedMaxServOutstandingCalled uint32
	// ProposedDataStructureNestingLevel - максимальная вложенность структур данных
	ProposedDataStructureNestingLevel uint32
	// ProposedVersionNumber - версия протокола MMS
	ProposedVersionNumber uint32
	// ProposedParameterCBB - поддерживаемые параметры (список установленных битов)
	ProposedParameterCBB []ParameterCBBBit
	// ServicesSupportedCalling - поддерживаемые услуги (список установленных битов)
	ServicesSupportedCalling []ServiceSupportedBit
}

// NewInitiateRequest создаёт InitiateRequest с параметрами по умолчанию,
// совпадающими с клиентом libIEC61850. Отдельные поля можно изменить
// перед вызовом Bytes
func NewInitiateRequest() *InitiateRequest {
	return &InitiateRequest{
		LocalDetailCalling:                65000,
		ProposedMaxServOutstandingCalling: 10,
		ProposedMaxServOutstandingCalled:  10,
		ProposedDataStructureNestingLevel: 5,
		ProposedVersionNumber:             1,
		// битовая маска fb00
		ProposedParameterCBB: []ParameterCBBBit{
			Str1,
			Str2,
			Vnam,
			Valt,
			Vadr,
			Tpy,
			Vlis,
		},
		// битовая маска ee1c00000408000079ef18
		ServicesSupportedCalling: []ServiceSupportedBit{
			Status,
			GetNameList,
			Identify,
			Read,
			Write,
			GetVariableAccessAttributes,
			DefineNamedVariableList,
			GetNamedVariableListAttributes,
			DeleteNamedVariableList,
			GetDomainAttributes,
			Kill,
			ReadJournal,
			WriteJournal,
			InitializeJournal,
			ReportJournalStatus,
			GetCapabilityList,
			FileOpen,
			FileRead,
			FileClose,
			FileDelete,
			FileDirectory,
			UnsolicitedStatus,
			InformationReportBit,
			Conclude,
			Cancel,
		},
	}
}

// Bytes кодирует InitiateRequest в BER-кодированный initiate-RequestPDU.
// Структура пакета (из wireshark, параметры по умолчанию):
// a8 26 - initiate-RequestPDU
//
//	80 03 00 fd e8 - localDetailCalling: 65000
//	81 01 0a - proposedMaxServOutstandingCalling: 10
//	82 01 0a - proposedMaxServOutstandingCalled: 10
//	83 01 05 - proposedDataStructureNestingLevel: 5
//	a4 16 - mmsInitRequestDetail
//	   80 01 01 - proposedVersionNumber: 1
//	   81 03 05 fb 00 - proposedParameterCBB (5 бит выравнивания)
//	   82 0c 03 ee 1c 00 00 04 08 00 00 79 ef 18 - servicesSupportedCalling
func (r *InitiateRequest) Bytes() []byte {
	innerContent := r.buildInitiateRequestContent()

	buffer := make([]byte, len(innerContent)+8)
	bufPos := ber.EncodeTL(ber.Tag(PduInitiateRequest), uint32(len(innerContent)), buffer, 0)
	copy(buffer[bufPos:], innerContent)
	bufPos += len(innerContent)

	return buffer[:bufPos]
}

// buildInitiateRequestContent собирает содержимое initiate-RequestPDU:
// четыре INTEGER параметра (теги 80-83) и mmsInitRequestDetail (a4)
func (r *InitiateRequest) buildInitiateRequestContent() []byte {
	detail := r.buildInitRequestDetail()

	buffer := make([]byte, len(detail)+32)
	bufPos := 0

	bufPos = ber.EncodeUInt32WithTL(ber.ContextSpecific0Primitive, r.LocalDetailCalling, buffer, bufPos)
	bufPos = ber.EncodeUInt32WithTL(ber.ContextSpecific1Primitive, r.ProposedMaxServOutstandingCalling, buffer, bufPos)
	bufPos = ber.EncodeUInt32WithTL(ber.ContextSpecific2Primitive, r.ProposedMaxServOutstandingCalled, buffer, bufPos)
	bufPos = ber.EncodeUInt32WithTL(ber.ContextSpecific3Primitive, r.ProposedDataStructureNestingLevel, buffer, bufPos)

	// mmsInitRequestDetail (Context-specific 4, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific4Constructed, uint32(len(detail)), buffer, bufPos)
	copy(buffer[bufPos:], detail)
	bufPos += len(detail)

	return buffer[:bufPos]
}

// buildInitRequestDetail собирает содержимое InitRequestDetail:
// версия протокола и две битовые маски
func (r *InitiateRequest) buildInitRequestDetail() []byte {
	paramCBB := ber.EncodeBitmaskFromOffsets(r.ProposedParameterCBB, ProposedParameterCBBBitmaskSize)
	services := ber.EncodeBitmaskFromOffsets(r.ServicesSupportedCalling, ServicesSupportedCallingBitmaskSize)

	buffer := make([]byte, len(paramCBB)+len(services)+16)
	bufPos := 0

	// proposedVersionNumber (Context-specific 0, INTEGER)
	bufPos = ber.EncodeUInt32WithTL(ber.ContextSpecific0Primitive, r.ProposedVersionNumber, buffer, bufPos)

	// proposedParameterCBB (Context-specific 1, BIT STRING)
	bufPos = encodeBitString(ber.ContextSpecific1Primitive, paramCBB, parameterCBBPaddingBits, buffer, bufPos)

	// servicesSupportedCalling (Context-specific 2, BIT STRING)
	bufPos = encodeBitString(ber.ContextSpecific2Primitive, services, servicesSupportedPaddingBits, buffer, bufPos)

	return buffer[:bufPos]
}

// encodeBitString кодирует BIT STRING: тег, длина, байт с числом
// неиспользуемых бит в последнем байте, сама маска
func encodeBitString(tag ber.Tag, bitmask []byte, paddingBits byte, buffer []byte, bufPos int) int {
	bufPos = ber.EncodeTL(tag, uint32(len(bitmask)+1), buffer, bufPos)
	buffer[bufPos] = paddingBits
	bufPos++
	copy(buffer[bufPos:], bitmask)
	return bufPos + len(bitmask)
}
