package mms

import (
	"context"
	"errors"
	"fmt"

	"github.com/slonegd/mmsreport/logger"
	"github.com/slonegd/mmsreport/osi/acse"
	"github.com/slonegd/mmsreport/osi/cotp"
	"github.com/slonegd/mmsreport/osi/presentation"
	"github.com/slonegd/mmsreport/osi/session"
)

// Client гоняет MMS PDU через верхние уровни OSI поверх установленного
// COTP соединения: на отправку заворачивает в presentation user-data и
// session DATA TRANSFER, на приём снимает обёртки в обратном порядке
type Client struct {
	cotpConn *cotp.Connection
	log      logger.Logger
}

// NewClient создаёт обвязку верхних уровней поверх COTP соединения
func NewClient(cotpConn *cotp.Connection, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{cotpConn: cotpConn, log: log}
}

// Send отправляет MMS PDU в обёртке фазы данных: presentation
// user-data в контексте mms-abstract-syntax-version1, session
// GIVE TOKENS + DATA TRANSFER, далее COTP
func (c *Client) Send(pdu []byte) error {
	presentationPdu := presentation.BuildUserData(pdu, presentation.ContextMMS)
	sessionPdu := session.BuildDataTransferWithTokens(presentationPdu)
	return c.cotpConn.SendDataMessage(sessionPdu)
}

// Receive собирает один входящий MMS PDU: дочитывает TPKT пакеты до
// полного COTP сообщения и снимает session и presentation обёртки.
// Ответ фазы установления приходит в контексте ACSE и дополнительно
// разворачивается из AARE
func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state, err := c.cotpConn.ReadToTpktBuffer(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read TPKT: %w", err)
		}
		if state != cotp.TpktPacketComplete {
			continue
		}

		indication, err := c.cotpConn.ParseIncomingMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to parse COTP message: %w", err)
		}

		switch indication {
		case cotp.IndicationMoreFragmentsFollow:
			continue

		case cotp.IndicationDisconnect:
			return nil, cotp.ErrDisconnected

		case cotp.IndicationData:
			data, err := c.unwrap(c.cotpConn.GetPayload())
			c.cotpConn.ResetPayload()
			return data, err

		default:
			return nil, fmt.Errorf("unexpected COTP indication: %s", indication)
		}
	}
}

// unwrap снимает session и presentation обёртки с собранного COTP
// payload и возвращает MMS PDU
func (c *Client) unwrap(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.New("received empty COTP payload")
	}

	sessionPdu, err := session.ParseSessionSPDU(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Session SPDU: %w", err)
	}

	presentationPdu, err := presentation.ParsePresentationPDU(sessionPdu.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Presentation PDU: %w", err)
	}

	switch presentationPdu.PresentationContextId {
	case presentation.ContextACSE:
		acsePdu, err := acse.ParseACSEPDU(presentationPdu.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ACSE PDU: %w", err)
		}
		c.log.Debug("  %s", acsePdu)
		return acsePdu.Data, nil

	case presentation.ContextMMS:
		return presentationPdu.Data, nil
	}

	return nil, fmt.Errorf("unknown presentation context ID: %d", presentationPdu.PresentationContextId)
}
