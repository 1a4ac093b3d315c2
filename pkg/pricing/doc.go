// Package pricing implements the pricing table and the cost calculator.
//
// # Pricing Model
//
// Every model is priced per 1000 tokens, separately for input (prompt) and
// output (completion) tokens:
//
//	cost = input_tokens/1000 * input_price + output_tokens/1000 * output_price
//
// Arithmetic is exact (shopspring/decimal) and the result is rounded half-up to
// the ledger's minor unit. Reservation ceilings are rounded up instead, so a
// ceiling is never smaller than the cost of the usage it estimates.
//
// # Rule Matching
//
// Rules use the same ordered pattern discipline as the provider router (see
// package pattern): exact literals first, then wildcards in table order.
//
//	pricing:
//	  - pattern: "*gpt-4o-mini*"
//	    input_per_1k: 0.00015
//	    output_per_1k: 0.0006
//	  - pattern: "*gpt-4o*"
//	    input_per_1k: 0.005
//	    output_per_1k: 0.015
//
// A model with no matching rule is an error (ErrNoPricing). There is no
// implicit default price, so a misconfigured model can never run unmetered.
//
// # Usage
//
//	table, err := pricing.NewTableFromConfig(cfg.Pricing)
//	if err != nil {
//		return err
//	}
//	calc := pricing.NewCalculator(table)
//
//	cost, err := calc.Cost("gpt-4o-mini", usage.Record{InputTokens: 900, OutputTokens: 120})
package pricing
