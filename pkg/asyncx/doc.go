// Package asyncx holds the fan-out primitives used by the mailer: run a
// function for every item of a slice with an optional concurrency cap and
// wait for every goroutine before returning.
//
// Nothing short-circuits. A failing item never cancels its siblings, which
// is what a bulk email send needs: every recipient gets exactly one attempt.
//
//	results := asyncx.Settle(ctx, 10, recipients, func(ctx context.Context, to string) (string, error) {
//	    return to, provider.SendEmail(ctx, to, subject, body, true)
//	})
//
// A limit of zero or less means one goroutine per item.
package asyncx
