package mmsreport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/slonegd/mmsreport/osi/cotp"
	"github.com/slonegd/mmsreport/osi/mms"
	"github.com/slonegd/mmsreport/osi/mms/variant"
	"github.com/slonegd/mmsreport/rcb"
)

// errRejected - IED отверг запрос rejectPDU ещё до выполнения
var errRejected = errors.New("request rejected by peer")

// request выполняет один MMS confirmed-обмен: отправляет PDU и ждёт ответ
// с тем же invokeID. Отчёты, пришедшие между запросом и ответом, уходят
// обработчику, а не теряются. Ответы с чужим invokeID отбрасываются:
// запросы здесь строго последовательны
func (c *Client) request(ctx context.Context, pdu []byte, invokeID uint32) ([]byte, error) {
	if err := c.mmsClient.Send(pdu); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	deadline := time.Now().Add(requestTimeout)
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}

		data, err := c.mmsClient.Receive(ctx)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, fmt.Errorf("no response to invoke %d within %s", invokeID, requestTimeout)
			}
			return nil, err
		}

		pduType, err := mms.DecodePduType(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("unparsable pdu discarded")
			continue
		}

		switch pduType {
		case mms.PduUnconfirmed:
			c.handleReport(data)

		case mms.PduConfirmedResponse:
			id, err := mms.DecodeInvokeID(data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode invokeID: %w", err)
			}
			if id != invokeID {
				c.log.Warn().Uint32("invoke_id", id).Uint32("expected", invokeID).
					Msg("stale response discarded")
				continue
			}
			return data, nil

		case mms.PduConfirmedError:
			serviceErr, err := mms.ParseServiceError(data)
			if err != nil {
				return nil, fmt.Errorf("failed to parse service error: %w", err)
			}
			if serviceErr.InvokeID != invokeID {
				c.log.Warn().Uint32("invoke_id", serviceErr.InvokeID).Uint32("expected", invokeID).
					Msg("stale service error discarded")
				continue
			}
			return nil, serviceErr

		case mms.PduReject:
			return nil, errRejected

		default:
			c.log.Warn().Stringer("pdu", pduType).Msg("unexpected pdu discarded")
		}
	}
}

// receiveLoop принимает отчёты до отмены контекста или ошибки транспорта.
// Простой дольше idleTimeout не ошибка: цикл пишет в лог и, если включён
// keep-alive, проверяет ассоциацию запросом identify
func (c *Client) receiveLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return err
		}

		data, err := c.mmsClient.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, os.ErrDeadlineExceeded):
				c.log.Info().Dur("idle", idleTimeout).Msg("no reports received, still waiting")
				if c.options.keepAlive {
					if err := c.sendKeepAlive(ctx); err != nil {
						return err
					}
				}
				continue
			case errors.Is(err, cotp.ErrDisconnected):
				return fmt.Errorf("peer closed association: %w", err)
			case ctx.Err() != nil:
				// отмена контекста во время чтения
				return ctx.Err()
			default:
				return err
			}
		}

		c.dispatch(data)
	}
}

// dispatch обрабатывает входящий PDU вне confirmed-обмена: ожидаются
// только отчёты, остальное логируется и отбрасывается
func (c *Client) dispatch(data []byte) {
	pduType, err := mms.DecodePduType(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("unparsable pdu discarded")
		return
	}

	switch pduType {
	case mms.PduUnconfirmed:
		c.handleReport(data)
	case mms.PduConfirmedResponse:
		id, _ := mms.DecodeInvokeID(data)
		c.log.Warn().Uint32("invoke_id", id).Msg("response without pending request discarded")
	case mms.PduConfirmedError:
		if serviceErr, err := mms.ParseServiceError(data); err == nil {
			c.log.Warn().Err(serviceErr).Msg("unsolicited service error")
		}
	default:
		c.log.Warn().Stringer("pdu", pduType).Msg("unexpected pdu discarded")
	}
}

// handleReport декодирует informationReport и доставляет отчёт
// обработчику и в метрики. Ошибки разбора отдельного отчёта не
// прерывают приём
func (c *Client) handleReport(data []byte) {
	infoReport, err := mms.ParseInformationReport(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to parse information report")
		return
	}
	if c.options.verbose {
		c.log.Debug().Stringer("raw", &infoReport).Msg("information report received")
	}

	rpt, err := c.decoder.Decode(infoReport.AccessResults, rcb.DefaultOptFlds(), c.reportDatasetSize(infoReport.AccessResults))
	if err != nil {
		c.log.Warn().Err(err).Str("source", infoReport.VariableListName).
			Msg("undecodable information report")
		return
	}
	if rpt.Mismatch != nil {
		c.log.Warn().Err(rpt.Mismatch).Str("rpt_id", rpt.RptID).
			Msg("report structure mismatch, decoded best-effort")
	}

	if c.options.handler != nil {
		c.options.handler(rpt)
	}
	if c.options.sink != nil {
		c.options.sink.PushReport(rpt)
	}
}

// reportDatasetSize подсматривает RptID в первом элементе отчёта и
// возвращает известный размер набора данных. Ноль - размер неизвестен,
// декодер доверится длине inclusion
func (c *Client) reportDatasetSize(results []mms.AccessResult) int {
	if len(results) == 0 || !results[0].Success || results[0].Value == nil {
		return 0
	}
	if results[0].Value.Type() != variant.VisibleString {
		return 0
	}
	return c.datasetSize[results[0].Value.Str()]
}

// sendKeepAlive проверяет ассоциацию запросом identify. Отказ IED
// не фатален, отсутствие ответа - фатально
func (c *Client) sendKeepAlive(ctx context.Context) error {
	invokeID := c.nextInvokeID()
	request := mms.NewIdentifyRequest(invokeID)
	data, err := c.request(ctx, request.Bytes(), invokeID)
	if err != nil {
		if isServiceLevel(err) {
			c.log.Warn().Err(err).Msg("identify keep-alive rejected")
			return nil
		}
		return fmt.Errorf("keep-alive failed: %w", err)
	}

	response, err := mms.ParseIdentifyResponse(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to parse identify response")
		return nil
	}
	c.log.Debug().Str("vendor", response.VendorName).Str("model", response.ModelName).
		Msg("keep-alive identify answered")
	return nil
}
