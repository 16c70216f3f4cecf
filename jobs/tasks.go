package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup regenerates cached reports for every company.
	TaskReportsWarmup = "reports:warmup"
	// TaskReportsDeliver renders one report as CSV and mails it.
	TaskReportsDeliver = "reports:deliver"
)

// WarmupPayload scopes a warm-up run. An empty CompanyIDs warms every company.
type WarmupPayload struct {
	CompanyIDs []int64 `json:"company_ids,omitempty"`
}

// DeliverPayload describes one scheduled report delivery. AsOf is a date or
// RFC 3339 instant; empty means the end of the previous month at run time.
type DeliverPayload struct {
	CompanyID  int64    `json:"company_id" validate:"gt=0"`
	Report     string   `json:"report" validate:"oneof=balance_sheet profit_loss ar_aging"`
	AsOf       string   `json:"as_of,omitempty"`
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
}

var payloadValidator = validator.New()

func (p DeliverPayload) validate() error {
	err := payloadValidator.Struct(p)
	var fieldErrs validator.ValidationErrors
	if err == nil || !errors.As(err, &fieldErrs) {
		return err
	}
	fe := fieldErrs[0]
	switch field := fe.StructField(); {
	case field == "CompanyID":
		return errors.New("jobs: deliver: company id required")
	case field == "Report":
		return fmt.Errorf("jobs: deliver: unknown report %q", p.Report)
	case fe.Tag() == "email":
		return fmt.Errorf("jobs: deliver: invalid recipient %q", fe.Value())
	case strings.HasPrefix(field, "Recipients"):
		return errors.New("jobs: deliver: at least one recipient required")
	default:
		return fmt.Errorf("jobs: deliver: %s failed %s", fe.Field(), fe.Tag())
	}
}

// NewWarmupTask constructs a reports:warmup task.
func NewWarmupTask(companyIDs ...int64) (*asynq.Task, error) {
	data, err := json.Marshal(WarmupPayload{CompanyIDs: companyIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}

// NewDeliverTask constructs a reports:deliver task after validating payload.
func NewDeliverTask(payload DeliverPayload) (*asynq.Task, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsDeliver, data), nil
}
