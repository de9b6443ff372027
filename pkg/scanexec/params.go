package scanexec

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/output"
	"github.com/scanforge/scanforge/pkg/scanerr"
)

var validate = validator.New()

// Params is the fully-resolved invocation surface of spec.md §6, after CLI
// flags have been layered over config-file/environment defaults: one
// Service.Run call per scan.
type Params struct {
	TargetSpec    string         `validate:"required"`
	PortSpec      string         `validate:"required"`
	ScanKind      model.ScanKind `validate:"required,oneof=syn connect udp fin xmas null"`
	TimeoutMS     int64          `validate:"min=1"`
	RateMS        int64          `validate:"min=0"`
	Parallelism   int            `validate:"min=1,max=512"`
	ParallelHosts int            `validate:"min=1,max=512"`
	OutputFormat  output.Format  `validate:"omitempty,oneof=human json xml csv"`
	OutputPath    string
	Color         bool
	Verbose       bool
	SkipDiscovery bool
}

// Validate checks Params against its struct tags, translating the first
// failing field into a SpecError (spec.md §7, exit code 1).
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return scanerr.SpecError("%s: failed %q validation", fe.Field(), fe.Tag())
		}
		return scanerr.SpecError("invalid scan parameters: %v", err)
	}
	return nil
}
