package main

import "fmt"

// multiFlag allows repeatable flag values, e.g. -b "dir&reel" -b "dir2&reel2".
type multiFlag []string

func (f *multiFlag) String() string { return fmt.Sprintf("%v", *f) }
func (f *multiFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}
