package export

import (
	"fmt"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// CaptureID is the id of the element wrapping the poster during capture.
const CaptureID = "poster-capture"

// CaptureRequest wraps markup in the capture root and appends rules that undo
// preview scaling, margins and positioning, so the root and its direct
// children fill exactly the resolved dimensions.
func CaptureRequest(markup, css string, dims pipeline.Dimensions, scale float64) ports.RenderRequest {
	return ports.RenderRequest{
		HTML:     fmt.Sprintf(`<div id="%s">%s</div>`, CaptureID, markup),
		CSS:      css + "\n" + resetCSS(dims),
		Width:    dims.Width,
		Height:   dims.Height,
		Scale:    scale,
		Selector: "#" + CaptureID,
	}
}

func resetCSS(d pipeline.Dimensions) string {
	return fmt.Sprintf(`html, body { margin: 0 !important; padding: 0 !important; overflow: hidden; }
#%[1]s {
  width: %[2]dpx !important; height: %[3]dpx !important;
  margin: 0 !important; padding: 0 !important;
  position: relative !important; top: 0 !important; left: 0 !important;
  transform: none !important; zoom: 1 !important;
  overflow: hidden; box-sizing: border-box;
}
#%[1]s > * {
  width: 100%% !important; height: 100%% !important;
  margin: 0 !important;
  position: relative !important; top: 0 !important; left: 0 !important;
  transform: none !important; zoom: 1 !important;
  box-sizing: border-box;
}`, CaptureID, d.Width, d.Height)
}
