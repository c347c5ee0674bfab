// Package job defines the job envelope, typed handler definitions, and
// the registry that maps dot-namespaced job types to handlers.
//
// Job types are dot-namespaced strings such as "email.send" or
// "report.generate". A worker claims envelopes from the coordinator and
// dispatches each to the handler registered for its type.
//
// # Defining a Handler
//
// Use [Definition] with a typed handler. The payload is JSON-serialized
// at enqueue time and deserialized before the handler runs; whatever the
// handler returns is reported to the coordinator as the job's result:
//
//	type EmailPayload struct {
//	    To      string `json:"to"`
//	    Subject string `json:"subject"`
//	}
//
//	var SendEmail = job.NewDefinition("email.send",
//	    func(ctx context.Context, p EmailPayload) (any, error) {
//	        return nil, smtp.Send(ctx, p.To, p.Subject)
//	    },
//	    job.WithTimeout(30*time.Second),
//	)
//
// Handlers that need crash-safe resumption register as durable instead
// and receive a deterministic-replay context (see the durable package):
//
//	var Import = job.NewDurableDefinition("crm.import",
//	    func(ctx context.Context, d *durable.Context, p ImportPayload) (any, error) {
//	        // ...
//	    },
//	)
//
// # Registry
//
// [Registry] maps job types to type-erased [HandlerFunc] values.
// Register definitions at startup via [Register] or [RegisterDurable]:
//
//	reg := job.NewRegistry()
//	job.MustRegister(reg, SendEmail)
//	job.MustRegisterDurable(reg, Import)
//
// Inside a handler, [FromContext] recovers the [Execution] carrying the
// envelope, attempt number, and worker identity.
package job
