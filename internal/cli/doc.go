// Package cli implements the concept2video command line.
//
//	concept2video run CONCEPT...      concept to video
//	concept2video render [SVG]        diagram to video
//	concept2video generate CONCEPT... concept to SVG
//	concept2video batch MANIFEST      many jobs from a YAML file
//	concept2video serve               HTTP API
//	concept2video worker              queue consumer
//	concept2video inspect [TIMELINE]  timeline summary
package cli
