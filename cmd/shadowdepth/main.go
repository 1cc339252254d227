// Command shadowdepth estimates how close a hand is to the face from the
// shadow it casts, live from a webcam or offline from files.
package main

func main() {
	Execute()
}
