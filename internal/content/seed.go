package content

import (
	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
)

const seedItemsPerType = 6

func rating(v float64) *float64 { return &v }

var seedItems = map[enums.ContentType][]models.ContentItem{
	enums.ContentTypeGames: {
		{ID: "dune-drifter", Title: "Dune Drifter", Description: "Surf procedurally generated dunes before the storm catches you.", Category: "arcade", MediaURL: "/media/games/dune-drifter.webp", Status: "live", Plays: 1280, Rating: rating(4.6)},
		{ID: "glass-garden", Title: "Glass Garden", Description: "Grow crystal plants by bending light through prisms.", Category: "puzzle", MediaURL: "/media/games/glass-garden.webp", Status: "live", Plays: 842, Rating: rating(4.4)},
		{ID: "hourglass-heist", Title: "Hourglass Heist", Description: "Steal the sands of time from a vault that rewinds every minute.", Category: "strategy", MediaURL: "/media/games/hourglass-heist.webp", Status: "live", Plays: 613, Rating: rating(4.2)},
		{ID: "mirage-runner", Title: "Mirage Runner", Description: "Tell real oases from mirages at ever higher speed.", Category: "arcade", MediaURL: "/media/games/mirage-runner.webp", Status: "beta", Plays: 257, Rating: rating(3.9)},
		{ID: "sandcastle-siege", Title: "Sandcastle Siege", Description: "Build a fortress before the tide rolls in.", Category: "strategy", MediaURL: "/media/games/sandcastle-siege.webp", Status: "beta", Plays: 198, Rating: rating(4.1)},
		{ID: "pixel-pilgrim", Title: "Pixel Pilgrim", Description: "A short narrative journey across a shifting desert.", Category: "adventure", MediaURL: "/media/games/pixel-pilgrim.webp", Status: "coming-soon"},
	},
	enums.ContentTypeTools: {
		{ID: "image-studio", Title: "Image Studio", Description: "Generate images from a prompt with your choice of model.", Category: "image", MediaURL: "/media/tools/image-studio.webp", Status: "live", Uses: 5320, Rating: rating(4.7)},
		{ID: "story-weaver", Title: "Story Weaver", Description: "Draft short stories and scripts with a text model.", Category: "text", MediaURL: "/media/tools/story-weaver.webp", Status: "live", Uses: 2114, Rating: rating(4.5)},
		{ID: "video-critic", Title: "Video Critic", Description: "Get a scored review of your video from a chosen perspective.", Category: "video", MediaURL: "/media/tools/video-critic.webp", Status: "live", Uses: 987, Rating: rating(4.3)},
		{ID: "palette-lab", Title: "Palette Lab", Description: "Extract and remix color palettes from any image.", Category: "image", MediaURL: "/media/tools/palette-lab.webp", Status: "beta", Uses: 411},
		{ID: "caption-forge", Title: "Caption Forge", Description: "Write captions and alt text for your creations.", Category: "text", MediaURL: "/media/tools/caption-forge.webp", Status: "beta", Uses: 356},
		{ID: "storyboarder", Title: "Storyboarder", Description: "Turn a script into a sequence of generated frames.", Category: "video", MediaURL: "/media/tools/storyboarder.webp", Status: "coming-soon"},
	},
}

// seedFor returns a copy so callers cannot mutate the seed table.
func seedFor(kind enums.ContentType) []models.ContentItem {
	items := seedItems[kind]
	out := make([]models.ContentItem, len(items))
	copy(out, items)
	return out
}
