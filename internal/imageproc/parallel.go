package imageproc

import (
	"runtime"
	"sync"
)

// parallelRows splits [start,end) into runtime.NumCPU() contiguous row
// ranges and runs fn over each range concurrently. Each worker owns a
// disjoint slice of rows, so fn must not touch state outside its
// assigned range — this is the row-partitioned parallelism the pixel
// kernels require (§5).
func parallelRows(start, end int, fn func(rowStart, rowEnd int)) {
	rows := end - start
	if rows <= 0 {
		return
	}

	workers := runtime.NumCPU()
	if workers > rows {
		workers = rows
	}
	if workers < 1 {
		workers = 1
	}

	chunk := (rows + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		rs := start + w*chunk
		re := rs + chunk
		if rs >= end {
			break
		}
		if re > end {
			re = end
		}
		wg.Add(1)
		go func(rs, re int) {
			defer wg.Done()
			fn(rs, re)
		}(rs, re)
	}
	wg.Wait()
}
