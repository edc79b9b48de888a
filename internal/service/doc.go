// Package service runs the scan pipeline against a single target.
//
// Overview
// Scanner owns one instance of every probing component, built from
// model.Config. Do executes the phases in order:
//
//	netscan.Scan  ->  [nmap -sV]  ->  camera.Classify
//	                                        |
//	                       no indicators and no confirmation => stop
//	                                        |
//	        +---------------+---------------+---------------+
//	        |               |               |               |
//	  LoginPages      Fingerprint      creds.Run      Sniff + Enumerate
//	        +---------------+---------------+---------------+
//	                                        |
//	                                   model.Report
//
// Invariants:
//   - No open port means no downstream phase is invoked.
//   - The phases after the classifier run concurrently and each one
//     writes a distinct Report field.
//   - Probe failures never fail the run. Only an invalid configuration
//     and cancellation of the context are returned as errors; a canceled
//     run still returns the partial report.
//   - Non fatal problems end up in Report.Warnings.
//
// Write renders the report as colored text, JSON or CycloneDX.
package service
