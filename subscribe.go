package mmsreport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slonegd/mmsreport/osi/mms"
	"github.com/slonegd/mmsreport/rcb"
)

// resolveRCBs возвращает список RCB для подписки: из настроек клиента
// или поиском в домене, когда настройки пусты. Ссылка без домена
// дополняется доменом клиента, точечная нотация разрешается перебором
// вариантов адресации
func (c *Client) resolveRCBs(ctx context.Context) ([]rcb.Reference, error) {
	if len(c.options.rcbs) == 0 {
		return c.discoverRCBs(ctx)
	}

	refs := make([]rcb.Reference, 0, len(c.options.rcbs))
	for _, raw := range c.options.rcbs {
		full := raw
		if !strings.ContainsAny(raw, "/ ") {
			full = c.options.domain + "/" + raw
		}
		ref, err := rcb.ParseReference(full)
		if err != nil {
			return nil, err
		}
		resolved, err := c.resolveReference(ctx, ref)
		if err != nil {
			return nil, err
		}
		refs = append(refs, resolved)
	}
	return refs, nil
}

// discoverRCBs ищет RCB в домене: перечисляет переменные через
// GetNameList и отбирает имена блоков управления
func (c *Client) discoverRCBs(ctx context.Context) ([]rcb.Reference, error) {
	var refs []rcb.Reference
	continueAfter := ""

	for {
		invokeID := c.nextInvokeID()
		request := &mms.GetNameListRequest{
			InvokeID:      invokeID,
			ObjectClass:   mms.ObjectClassNamedVariable,
			DomainID:      c.options.domain,
			ContinueAfter: continueAfter,
		}
		data, err := c.request(ctx, request.Bytes(), invokeID)
		if err != nil {
			return nil, fmt.Errorf("failed to list domain %q variables: %w", c.options.domain, err)
		}
		response, err := mms.ParseGetNameListResponse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse getNameList response: %w", err)
		}

		for _, name := range response.ListOfIdentifier {
			if rcb.IsControlBlock(name) {
				refs = append(refs, rcb.Reference{Domain: c.options.domain, Item: name})
			}
		}

		if !response.MoreFollows || len(response.ListOfIdentifier) == 0 {
			break
		}
		continueAfter = response.ListOfIdentifier[len(response.ListOfIdentifier)-1]
	}

	c.log.Info().Str("domain", c.options.domain).Int("count", len(refs)).Msg("rcb discovery complete")
	return refs, nil
}

// resolveReference подбирает точный MMS-адрес RCB: читает RptID каждого
// варианта, пока IED не ответит успехом. Ссылка с явным классом
// ($BR$/$RP$) используется как есть
func (c *Client) resolveReference(ctx context.Context, ref rcb.Reference) (rcb.Reference, error) {
	candidates := referenceCandidates(ref)
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	for _, candidate := range candidates {
		ok, err := c.probeRCB(ctx, candidate)
		if err != nil {
			return rcb.Reference{}, err
		}
		if ok {
			c.log.Debug().Stringer("rcb", ref).Stringer("resolved", candidate).Msg("rcb address resolved")
			return candidate, nil
		}
	}
	return rcb.Reference{}, fmt.Errorf("rcb %s: no address variant answered", ref)
}

// referenceCandidates строит варианты адресации RCB обоих классов
func referenceCandidates(ref rcb.Reference) []rcb.Reference {
	var candidates []rcb.Reference
	for _, kind := range []rcb.Kind{rcb.KindBRCB, rcb.KindURCB} {
		for _, candidate := range ref.Variants(kind) {
			if len(candidates) == 1 && candidates[0] == candidate {
				// ссылка уже однозначна, Variants вернул её как есть
				return candidates
			}
			candidates = append(candidates, candidate)
		}
	}
	return candidates
}

// probeRCB проверяет существование RCB чтением его RptID. Отказ IED
// означает, что такого адреса нет; ошибки транспорта фатальны
func (c *Client) probeRCB(ctx context.Context, ref rcb.Reference) (bool, error) {
	invokeID := c.nextInvokeID()
	request := mms.NewReadRequest(invokeID, ref.Domain, ref.Attribute("RptID"))
	data, err := c.request(ctx, request.Bytes(), invokeID)
	if err != nil {
		if isServiceLevel(err) {
			return false, nil
		}
		return false, err
	}

	response, err := mms.ParseReadResponse(data)
	if err != nil {
		return false, fmt.Errorf("failed to parse read response: %w", err)
	}
	for _, result := range response.ListOfAccessResult {
		if result.Success {
			return true, nil
		}
	}
	return false, nil
}

// enableRCB читает текущие значения атрибутов RCB и выполняет план
// активации. Все записи одного RCB завершаются до перехода к следующему
func (c *Client) enableRCB(ctx context.Context, ref rcb.Reference) error {
	values, err := c.readRCBValues(ctx, ref)
	if err != nil {
		return c.classifyEnableError(ref, rcb.StepRead, err)
	}
	c.log.Info().Stringer("rcb", ref).Stringer("state", values).Msg("rcb read")

	size, err := c.resolveDatasetSize(ctx, values.DatSet)
	if err != nil {
		return err
	}
	c.registerReport(ref, values, size)

	for _, write := range rcb.EnablePlan(ref, values, c.options.intgPdMs) {
		if err := c.applyWrite(ctx, ref, write); err != nil {
			return err
		}
	}

	c.log.Info().Stringer("rcb", ref).Str("dataset", values.DatSet).Msg("reporting enabled")
	return nil
}

// readRCBValues читает атрибуты RCB одним multi-variable Read.
// Отказы по отдельным атрибутам не фатальны: IED может не
// поддерживать часть из них
func (c *Client) readRCBValues(ctx context.Context, ref rcb.Reference) (rcb.Values, error) {
	attrs := rcb.ReadAttributes(ref.Kind())
	items := make([]string, len(attrs))
	for i, attr := range attrs {
		items[i] = ref.Attribute(attr)
	}

	invokeID := c.nextInvokeID()
	request := mms.NewReadRequest(invokeID, ref.Domain, items...)
	data, err := c.request(ctx, request.Bytes(), invokeID)
	if err != nil {
		return rcb.Values{}, err
	}
	response, err := mms.ParseReadResponse(data)
	if err != nil {
		return rcb.Values{}, fmt.Errorf("failed to parse read response: %w", err)
	}
	return rcb.ValuesFromAccessResults(attrs, response.ListOfAccessResult), nil
}

// applyWrite выполняет одну запись плана активации
func (c *Client) applyWrite(ctx context.Context, ref rcb.Reference, write rcb.Write) error {
	invokeID := c.nextInvokeID()
	request := mms.NewWriteRequest(invokeID, ref.Domain, ref.Attribute(write.Attribute), write.Value)
	pdu, err := request.Bytes()
	if err != nil {
		return &rcb.EnableError{RCB: ref, Step: write.Step, Cause: err}
	}

	data, err := c.request(ctx, pdu, invokeID)
	if err != nil {
		return c.classifyEnableError(ref, write.Step, err)
	}
	response, err := mms.ParseWriteResponse(data)
	if err != nil {
		return fmt.Errorf("failed to parse write response: %w", err)
	}

	if failure := response.Failed(); failure != nil {
		if write.IgnoreAccessDenied && failure.ErrorCode == mms.ObjectAccessDenied {
			c.log.Debug().Stringer("rcb", ref).Str("attribute", write.Attribute).
				Msg("access denied ignored")
			return nil
		}
		return &rcb.EnableError{RCB: ref, Step: write.Step, Cause: failure}
	}

	c.log.Debug().Stringer("rcb", ref).Str("attribute", write.Attribute).
		Stringer("value", write.Value).Msg("rcb attribute written")
	return nil
}

// resolveDatasetSize определяет число членов набора данных: по подписям
// из SCL, иначе запросом описания типа у IED. Неудача не фатальна -
// декодер обходится без известного размера, доверяя inclusion
func (c *Client) resolveDatasetSize(ctx context.Context, datSet string) (int, error) {
	if datSet == "" {
		return 0, nil
	}
	if labels := c.decoder.Labels.ForDataSet(datSet); len(labels) > 0 {
		return len(labels), nil
	}

	ref, err := rcb.ParseReference(datSet)
	if err != nil {
		return 0, nil
	}

	invokeID := c.nextInvokeID()
	request := mms.NewGetVariableAccessAttributesRequest(invokeID, ref.Domain, ref.Item)
	data, err := c.request(ctx, request.Bytes(), invokeID)
	if err != nil {
		if isServiceLevel(err) {
			return 0, nil
		}
		return 0, err
	}

	response, err := mms.ParseGetVariableAccessAttributesResponse(data)
	if err != nil {
		c.log.Debug().Err(err).Str("dataset", datSet).Msg("dataset type not parsed")
		return 0, nil
	}
	spec := response.TypeSpecification
	if spec == nil || spec.Type != mms.TypeSpecStructure || spec.Structure == nil {
		return 0, nil
	}
	return len(spec.Structure.Components), nil
}

// registerReport запоминает размер набора данных под RptID отчёта.
// IED с пустым RptID подставляет в отчёты ссылку на сам RCB
func (c *Client) registerReport(ref rcb.Reference, values rcb.Values, size int) {
	rptID := values.RptID
	if rptID == "" {
		rptID = ref.String()
	}
	c.datasetSize[rptID] = size
	if size > 0 {
		c.log.Debug().Str("rpt_id", rptID).Int("members", size).Msg("dataset size resolved")
	}
}

// classifyEnableError оборачивает отказ IED в ошибку шага активации.
// Ошибки транспорта остаются как есть: после них соединение непригодно
func (c *Client) classifyEnableError(ref rcb.Reference, step rcb.Step, err error) error {
	if isServiceLevel(err) {
		return &rcb.EnableError{RCB: ref, Step: step, Cause: err}
	}
	return err
}

// isServiceLevel отличает отказ IED, локальный для одного запроса, от
// проблем транспорта
func isServiceLevel(err error) bool {
	var serviceErr *mms.ServiceError
	var accessErr *mms.DataAccessError
	return errors.As(err, &serviceErr) || errors.As(err, &accessErr) || errors.Is(err, errRejected)
}
