package main

import (
	"embed"
	"sort"
)

// appImages embeds every precompiled user ELF binary into the kernel
// binary itself, in place of the source system's __num_app linker table
// (§6): the build toolchain does the splicing instead of a linker script.
//
//go:embed apps/*.elf
var appImages embed.FS

// loadAppImages returns every embedded app's raw bytes, ordered by
// filename -- the same "__app_<i>" ordering the linker table encoded by
// construction, kept explicit here since embed.FS does not guarantee
// directory read order.
func loadAppImages() ([][]byte, error) {
	entries, err := appImages.ReadDir("apps")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	images := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := appImages.ReadFile("apps/" + name)
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, nil
}
