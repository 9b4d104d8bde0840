package main

import (
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/ojas-mohbansi/my-own-os/kernel"
	"github.com/ojas-mohbansi/my-own-os/shell"
	"github.com/spf13/pflag"
)

var (
	fCPUs  = pflag.IntP("cpus", "c", kernel.DefaultCPUs, "number of logical CPUs to schedule across")
	fArena = pflag.IntP("fs-size", "f", kernel.DefaultArenaSize, "file system data area size in bytes")
)

func main() {
	cpuprofile := os.Getenv("CPUPROFILE")
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		fmt.Printf("pprof: profiling started\n")
	}

	pflag.Parse()

	k, err := kernel.New(kernel.Config{
		CPUs:      *fCPUs,
		ArenaSize: *fArena,
	})
	if err != nil {
		log.Fatal(err)
	}

	sh := shell.New(k, os.Stdin, os.Stdout)

	err = sh.Run()

	if cpuprofile != "" {
		pprof.StopCPUProfile()
		fmt.Printf("pprof: profiling finished\n")
	}

	if err != nil {
		log.Fatal(err)
	}
}
