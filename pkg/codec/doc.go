// Package codec imports and exports workflow definitions and rule sets as
// YAML or JSON.
//
// Decoding goes through intermediate document structs that mirror the file
// layout; a builder then turns them into model types, normalizing every
// condition and action value (numbers become float64, lists []any, objects
// map[string]any). Decoding an encoded definition therefore yields a value
// deep-equal to the original after normalization.
//
// # Usage
//
//	def, err := codec.ReadWorkflowFile("workflows/personal-loan.yaml")
//	if err != nil {
//	    var derr *codec.DecodeError
//	    if errors.As(err, &derr) {
//	        log.Printf("%s: %s", derr.Location(), derr.Message)
//	    }
//	}
//
//	out, err := codec.EncodeWorkflow(def, codec.FormatJSON)
//
// Decoding does not validate the graph; pass the result through the validator
// package before executing it.
package codec
