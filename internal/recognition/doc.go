// Package recognition wraps an external flower detector.
//
// The Adapter owns the loaded state of a Detector and normalizes what it
// returns: boxes without positive extent are dropped, confidences are clamped
// into [0,1], and results are ordered by descending confidence with ties kept
// in detector order. Two detectors are provided. HTTPDetector speaks the JSON
// contract of the detection web service and OllamaDetector prompts a local
// vision model. Visualize and Annotate draw boxes and labels for review.
package recognition
