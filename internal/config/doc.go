// Package config holds the run configuration of the report generator.
//
// A Config is assembled in layers: NewConfig defaults, then the optional
// YAML file (.intermittents.yaml), then environment variables, and finally
// command line flags. Validate is called once before any work starts.
//
// The YAML file has three sections:
//
//	tracker:
//	  url: https://bugzilla.mozilla.org
//	  api_key: ${BUGZILLA_API_KEY}
//	  timeout: 60s
//	defaults:
//	  notes: notes.csv
//	profiles:
//	  devtools:
//	    product: DevTools
//	    components: ["Console"]
//
// A profile selects the notes file and the tracker search. Named profiles
// are merged over defaults, which are merged over the built-in
// WebExtensions profile.
package config
