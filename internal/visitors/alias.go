package visitors

import "hash/fnv"

var visitorAdjectives = []string{
	"Curious", "Happy", "Clever", "Wise", "Playful", "Brave", "Swift", "Gentle", "Smart", "Busy",
	"Bright", "Cheerful", "Creative", "Elegant", "Friendly", "Magical", "Peaceful", "Quiet", "Bold", "Nimble",
	"Daring", "Lively", "Spirited", "Radiant", "Merry", "Inventive", "Graceful", "Warm", "Calm", "Quick",
}

var visitorAnimals = []string{
	"Panda", "Fox", "Owl", "Otter", "Lion", "Eagle", "Deer", "Raven", "Beaver", "Koala",
	"Sloth", "Hamster", "Cat", "Bear", "Penguin", "Kangaroo", "Parrot", "Giraffe", "Duck", "Raccoon",
	"Dolphin", "Whale", "Seahorse", "Turtle", "Octopus", "Falcon", "Hawk", "Swan", "Crane", "Heron",
	"Wolf", "Tiger", "Squirrel", "Rabbit", "Hedgehog", "Dragon", "Unicorn", "Phoenix", "Griffin", "Kraken",
}

// Alias returns an anonymized display name for the given visitor identifier.
// The same identifier always maps to the same alias.
func Alias(visitorID string) string {
	h := fnv.New32a()
	h.Write([]byte(visitorID))
	index := int(h.Sum32())

	adjIndex := index % len(visitorAdjectives)
	animalIndex := (index / len(visitorAdjectives)) % len(visitorAnimals)

	return visitorAdjectives[adjIndex] + " " + visitorAnimals[animalIndex]
}
