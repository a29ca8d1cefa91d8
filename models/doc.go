// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

  - CreateSequenceRequest: Group key, name, repeats, set size, optional seed
  - SubmitTrialRequest: Participant, best/worst stimulus, stimuli shown
  - FinalizeRequest: Participant whose ranking should be computed

# Response Types

  - CreateSequenceResponse: Stored sequence, trials, leftover and seed
  - TrialsResponse: Trials of a sequence plus a resource id → URI map
  - SubmitTrialResponse: Confirmation and the participant's online values
  - ValuesResponse: Online values as a ranking
  - FinalizeResponse: Fitted ranking, best first

# Domain Types

Rows of the persisted tables: Resource, Participant, SequenceInfo,
FinalScore.

# Error Response

All errors return:

	{
	  "error": "Bad Request",
	  "code": "validation",
	  "message": "best and worst cannot be the same stimulus (3)"
	}

Code is one of validation, not_found, insufficient_data, model_fit_failed,
store_unavailable or internal.
*/
package models
