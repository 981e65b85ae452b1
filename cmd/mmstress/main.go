// Command mmstress exercises an mmalloc heap from many goroutines and
// reports its block lifecycle counters.
package main

import _ "go.uber.org/automaxprocs"

func main() {
	execute()
}
