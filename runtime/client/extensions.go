package client

import (
	"context"
	"time"
)

// ExtensionContext provides context for extension hooks
type ExtensionContext struct {
	Context context.Context
	// Query is the AQL text of the operation.
	Query string
	// Operation is list, iterate, scroll or executeUpdate.
	Operation string
	// Spaces are the tables the query reads or writes.
	Spaces    []string
	Result    any // set for After hooks
	Error     error
	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// Hook is called before or after an operation. Returning an error from a Before hook
// aborts the operation.
type Hook func(ctx *ExtensionContext) error

// Extension defines hooks for extending client behavior
type Extension struct {
	Name string

	BeforeQuery Hook
	AfterQuery  Hook

	BeforeMutation Hook
	AfterMutation  Hook
}

// Extend adds an extension to the client.
func (c *Client) Extend(ext Extension) {
	c.extensions = append(c.extensions, ext)
}

// runExtensions runs exec between the Before and After hooks of the extensions, the
// After hooks in reverse order. After hooks may replace ctx.Result.
func (c *Client) runExtensions(extCtx *ExtensionContext, mutation bool, exec func() (any, error)) (any, error) {
	extCtx.StartTime = time.Now()
	for _, ext := range c.extensions {
		before := ext.BeforeQuery
		if mutation {
			before = ext.BeforeMutation
		}
		if before != nil {
			if err := before(extCtx); err != nil {
				return nil, err
			}
		}
	}

	result, err := exec()
	extCtx.Result = result
	extCtx.Error = err
	extCtx.EndTime = time.Now()
	extCtx.Duration = extCtx.EndTime.Sub(extCtx.StartTime)

	for i := len(c.extensions) - 1; i >= 0; i-- {
		after := c.extensions[i].AfterQuery
		if mutation {
			after = c.extensions[i].AfterMutation
		}
		if after != nil {
			if hookErr := after(extCtx); hookErr != nil {
				return extCtx.Result, hookErr
			}
		}
	}
	return extCtx.Result, err
}

// LoggingExtension creates an extension that logs operations
func LoggingExtension(logger func(format string, args ...any)) Extension {
	before := func(ctx *ExtensionContext) error {
		logger("[%s] %s", ctx.Operation, ctx.Query)
		return nil
	}
	after := func(ctx *ExtensionContext) error {
		if ctx.Error != nil {
			logger("[%s] %s - Error: %v (Duration: %v)", ctx.Operation, ctx.Query, ctx.Error, ctx.Duration)
		} else {
			logger("[%s] %s - Success (Duration: %v)", ctx.Operation, ctx.Query, ctx.Duration)
		}
		return nil
	}
	return Extension{
		Name:           "logging",
		BeforeQuery:    before,
		AfterQuery:     after,
		BeforeMutation: before,
		AfterMutation:  after,
	}
}

// TimingExtension creates an extension that measures operation timing
func TimingExtension(onTiming func(query, operation string, duration time.Duration)) Extension {
	after := func(ctx *ExtensionContext) error {
		if onTiming != nil {
			onTiming(ctx.Query, ctx.Operation, ctx.Duration)
		}
		return nil
	}
	return Extension{Name: "timing", AfterQuery: after, AfterMutation: after}
}

// ResultTransformationExtension creates an extension that transforms list results
func ResultTransformationExtension(transform func(ctx *ExtensionContext, result any) any) Extension {
	return Extension{
		Name: "result-transformation",
		AfterQuery: func(ctx *ExtensionContext) error {
			if ctx.Result != nil && transform != nil {
				ctx.Result = transform(ctx, ctx.Result)
			}
			return nil
		},
	}
}
