package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/happyleavesaoc/motorparts/pkg/account"
	"github.com/happyleavesaoc/motorparts/pkg/protocol"
)

// Report is a vehicle health report flattened to item/value pairs.
type Report map[string]string

// TowGuide carries the tow-guide payload. The schema varies by vehicle, so it is left untyped.
type TowGuide map[string]interface{}

type reportItem struct {
	ItemKey  string       `json:"itemKey"`
	Severity string       `json:"severity"`
	Value    interface{}  `json:"value"`
	Items    []reportItem `json:"items"`
}

// HealthReport fetches the vehicle health report and flattens its report card.
func (v *Vehicle) HealthReport(ctx context.Context) (Report, error) {
	raw, err := v.healthReportBody(ctx)
	if err != nil {
		return nil, err
	}
	var payload struct {
		ReportCard *reportItem `json:"reportCard"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", protocol.ErrDataUnavailable, err)
	}
	if payload.ReportCard == nil {
		return nil, fmt.Errorf("%w: no report card in health report", protocol.ErrDataUnavailable)
	}
	report := make(Report)
	flattenReport(payload.ReportCard, report)
	return report, nil
}

// FullHealthReport fetches the health report without flattening, for callers that want the
// portal's complete payload.
func (v *Vehicle) FullHealthReport(ctx context.Context) (map[string]interface{}, error) {
	raw, err := v.healthReportBody(ctx)
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", protocol.ErrDataUnavailable, err)
	}
	return payload, nil
}

func (v *Vehicle) healthReportBody(ctx context.Context) ([]byte, error) {
	pv, err := v.profileVehicle(ctx)
	if err != nil {
		return nil, err
	}
	body, err := v.acct.Get(ctx, account.HealthReportURL, url.Values{"uuid": {pv.UUID}})
	if err != nil {
		return nil, err
	}
	if err := account.CheckSession(body); err != nil {
		return nil, err
	}
	return body, nil
}

// flattenReport walks the report card's nested items. Hidden and empty entries are dropped along
// with their children, matching how the portal's own UI renders the card.
func flattenReport(item *reportItem, out Report) {
	for i := range item.Items {
		child := &item.Items[i]
		value, ok := reportValue(child.Value)
		if !ok || child.Severity == "NonDisplay" || child.ItemKey == "categoryDesc" {
			continue
		}
		out[child.ItemKey] = value
		flattenReport(child, out)
	}
}

func reportValue(raw interface{}) (string, bool) {
	switch value := raw.(type) {
	case nil:
		return "", false
	case string:
		switch value {
		case "Null", "NULL", "N/A":
			return "", false
		case "0.0":
			// The portal uses 0.0 as "no issues found".
			return "Ok", true
		}
		return value, true
	default:
		return fmt.Sprint(value), true
	}
}

// GetTowGuide fetches towing capacity details for the vehicle.
func (v *Vehicle) GetTowGuide(ctx context.Context) (TowGuide, error) {
	pv, err := v.profileVehicle(ctx)
	if err != nil {
		return nil, err
	}
	body, err := v.acct.PostForm(ctx, account.TowGuideURL, url.Values{"vin": {pv.VIN}})
	if err != nil {
		return nil, err
	}
	if err := account.CheckSession(body); err != nil {
		return nil, err
	}
	var guide TowGuide
	if err := json.Unmarshal(body, &guide); err != nil {
		return nil, fmt.Errorf("%w: %s", protocol.ErrDataUnavailable, err)
	}
	return guide, nil
}
