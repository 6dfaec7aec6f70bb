// Package storage persists search results as newline-delimited JSON.
//
// A Sink owns two streams created fresh at the start of a run:
//
//	<base>/complete/<file>   one full record per line
//	<base>/text_only/<file>  one {"text": ...} object per line
//
// Writes are unbuffered appends; a failed write is an output error and ends
// the run, leaving the lines written so far on disk.
package storage
