// Package loadtest generates staged synthetic traffic against the gateway
// and evaluates pass/fail thresholds over the whole run.
//
// A Runner ramps virtual users up and down following a Schedule. Each
// virtual user repeatedly executes one Scenario iteration and sleeps between
// iterations. Requests made through a Client feed the built-in metrics
// (http_req_duration, http_reqs, http_req_failed); checks recorded on the
// Registry feed the checks rate.
//
//	registry := loadtest.NewRegistry()
//	client := loadtest.NewClient(host, 10*time.Second, registry)
//	scenario := loadtest.NewGatewayScenario(host, client, registry, logger, 500*time.Millisecond)
//	result, err := loadtest.New(opts, scenario, registry).Run(ctx)
//
// Thresholds such as "p(95)<500" on http_req_duration are evaluated when the
// schedule ends; Result.Err reports a *ThresholdError if any of them failed.
package loadtest
