package providers

import (
	"fmt"

	"github.com/sandgallery/sandgallery-backend/pkg/enums"
)

var personas = map[enums.Perspective]string{
	enums.PerspectiveDirector: "You are a film director reviewing a cut. You care about intent, shot choice, blocking and whether every scene earns its place.",
	enums.PerspectiveEditor:   "You are a professional video editor. You watch for cut timing, continuity, transitions, color consistency and audio sync.",
	enums.PerspectiveAudience: "You are an ordinary viewer scrolling a feed. You judge whether the video holds attention and whether you would share it.",
	enums.PerspectiveCritic:   "You are a published film critic. You place the work in context, name its influences and judge its ambition against its execution.",
}

var tones = map[enums.Harshness]string{
	enums.HarshnessGentle:   "Be encouraging. Lead with strengths and phrase every problem as an opportunity.",
	enums.HarshnessBalanced: "Be fair. Give equal weight to what works and what does not.",
	enums.HarshnessHonest:   "Be direct. Do not soften problems, but stay constructive.",
	enums.HarshnessHarsh:    "Be demanding. Hold the work to professional standards and call out every weakness.",
	enums.HarshnessBrutal:   "Be unsparing. Score strictly and state plainly what fails and why.",
}

const analysisRubric = `Score the video on five criteria, each an integer from 0 to 100:
- editing: cut rhythm, continuity, transitions
- fx: visual effects, compositing, color work
- pacing: momentum and use of time
- storytelling: clarity of narrative or message
- quality: technical quality of image and sound

Respond with JSON only, in exactly this shape:
{"scores":{"editing":0,"fx":0,"pacing":0,"storytelling":0,"quality":0},
 "critiques":{"editing":"","fx":"","pacing":"","storytelling":"","quality":""},
 "reasoning":""}`

func analysisInstruction(perspective enums.Perspective, harshness enums.Harshness) string {
	return fmt.Sprintf("%s\n%s", personas[perspective], tones[harshness])
}
