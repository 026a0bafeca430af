// ABOUTME: Package iqsource provides the high-level streaming source API
// ABOUTME: Ties the session controller and the stream reader into one block

// Package iqsource is a streaming block that delivers fixed-size items from
// a chain of byte sources, most of them synthesized I/Q tone files.
//
// A Block owns two goroutines' worth of state: the host calls Work from a
// single consumer goroutine while the session controller, driven by a line
// oriented command stream, synthesizes new files and appends them to the
// reader's chain.
//
// Example:
//
//	block, err := iqsource.New(iqsource.Config{
//	    ItemSize: 8,
//	    Session: iqsource.SessionConfig{
//	        Initial: []float64{1.0, 2.5},
//	        Input:   os.Stdin,
//	        Output:  os.Stdout,
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer block.Close()
//	block.Start()
//
//	io.Copy(os.Stdout, iqsource.NewItemReader(block, 0))
package iqsource
