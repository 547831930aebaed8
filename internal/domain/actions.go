package domain

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// BodyActionCatalogVersion changes whenever the catalog below changes, so
// a user's deterministic pick only moves on a catalog update.
const BodyActionCatalogVersion = 1

// Short physical grounding actions, 2-3 minutes, low cognitive load.
var bodyActions = []string{
	"Stand up and take 5 deep breaths, feeling your feet on the floor",
	"Shake out your hands and shoulders for 30 seconds, then roll your shoulders",
	"Walk around the room for 2 minutes, counting steps up to 120",
	"Stretch: reach up, then down to your toes, 3 times",
	"Drink a glass of water slowly, paying attention to the sensation",
	"Do 10 light squats or half-squats at a comfortable pace",
	"Stand tall, straighten your shoulders and look out the window for 60 seconds",
}

// BodyActionFor picks one catalog action deterministically per user, so
// the same user always gets the same action for a given catalog version.
func BodyActionFor(userID uuid.UUID) string {
	h := fnv.New64a()
	h.Write(userID[:])
	h.Write([]byte{byte(BodyActionCatalogVersion)})
	return bodyActions[h.Sum64()%uint64(len(bodyActions))]
}
