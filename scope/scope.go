// Package scope propagates multi-tenant identity (app and org) from
// the code that enqueues a job to the handler that executes it,
// carried in the job envelope's metadata.
//
// Wire both directions once:
//
//	c.Intercept("scope", scope.EnqueueInterceptor())
//	w.Use("scope", scope.Middleware())
//
// then any handler can recover the submitter's identity:
//
//	s, ok := scope.FromContext(ctx)
package scope

import (
	"context"

	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/middleware"
	"github.com/openjobspec/ojs-go/wire"
)

// Metadata keys the scope travels under.
const (
	MetaAppID = "scope_app_id"
	MetaOrgID = "scope_org_id"
)

// Scope identifies the tenant on whose behalf a job runs.
type Scope struct {
	AppID string
	OrgID string
}

// IsZero reports whether the scope carries no identity.
func (s Scope) IsZero() bool { return s.AppID == "" && s.OrgID == "" }

type ctxKey struct{}

// NewContext returns a context carrying s.
func NewContext(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the scope attached to the context.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(Scope)
	return s, ok
}

// FromJob reads the scope recorded in a job envelope's metadata.
func FromJob(j *job.Job) Scope {
	return Scope{
		AppID: j.Meta[MetaAppID],
		OrgID: j.Meta[MetaOrgID],
	}
}

// EnqueueInterceptor stamps the caller's scope into the outgoing job's
// metadata. Submissions from an unscoped context pass through
// untouched.
func EnqueueInterceptor() middleware.EnqueueFunc {
	return func(ctx context.Context, req *wire.JobRequest, next middleware.EnqueueNext) (*job.Job, error) {
		if s, ok := FromContext(ctx); ok && !s.IsZero() {
			if req.Meta == nil {
				req.Meta = make(map[string]string, 2)
			}
			if s.AppID != "" {
				req.Meta[MetaAppID] = s.AppID
			}
			if s.OrgID != "" {
				req.Meta[MetaOrgID] = s.OrgID
			}
		}
		return next(ctx, req)
	}
}

// Middleware restores the scope recorded in the claimed job's metadata
// into the execution context, so handlers and later interceptors see
// the identity the job was enqueued under.
func Middleware() middleware.Func {
	return func(ctx context.Context, ex *job.Execution, next middleware.Next) (any, error) {
		if s := FromJob(ex.Job); !s.IsZero() {
			ctx = NewContext(ctx, s)
		}
		return next(ctx)
	}
}
