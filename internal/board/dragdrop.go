package board

import (
	"context"
	"fmt"
	"sync"

	"demandboard/internal/domain"
)

// DragPayload identifies the card being dragged and where it came from.
type DragPayload struct {
	ID     string
	Source domain.Category
}

// Edge band and top speed for AutoScroll, in the caller's units (pixels for
// a pointer, rows for a terminal).
const (
	ScrollEdge     = 60.0
	ScrollMaxSpeed = 20.0
)

// DragController turns drag gestures into moves on a Board. It only owns
// transient hover and dragging state.
type DragController struct {
	board *Board

	mu       sync.Mutex
	payload  *DragPayload
	hoverCat domain.Category
}

func NewDragController(b *Board) *DragController {
	return &DragController{board: b}
}

func (c *DragController) DragStart(id string) (DragPayload, error) {
	if c.board.Mode() == ModeDeleteSelecting {
		return DragPayload{}, ErrDragDisabled
	}
	d, ok := c.board.repo.Get(id)
	if !ok {
		return DragPayload{}, fmt.Errorf("%w: %s", ErrUnknownDemand, id)
	}
	p := DragPayload{ID: d.ID, Source: d.Category}
	c.mu.Lock()
	c.payload = &p
	c.mu.Unlock()
	return p, nil
}

func (c *DragController) DragOver(cat domain.Category) {
	if !cat.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload != nil {
		c.hoverCat = cat
	}
}

// DragLeave clears the hover highlight; the drag itself continues.
func (c *DragController) DragLeave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hoverCat = ""
}

// Drop moves the dragged card to cat unless it already lives there. Drag
// state is cleared either way. A nil Pending means nothing was moved.
func (c *DragController) Drop(ctx context.Context, cat domain.Category) (*Pending, error) {
	c.mu.Lock()
	payload := c.payload
	c.payload = nil
	c.hoverCat = ""
	c.mu.Unlock()

	if payload == nil || payload.Source == cat {
		return nil, nil
	}
	if c.board.Mode() == ModeDeleteSelecting {
		return nil, ErrDragDisabled
	}
	return c.board.MoveCard(ctx, payload.ID, cat)
}

func (c *DragController) DragEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payload = nil
	c.hoverCat = ""
}

func (c *DragController) DraggingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil {
		return ""
	}
	return c.payload.ID
}

func (c *DragController) HoverCategory() domain.Category {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hoverCat
}

// AutoScroll returns the scroll step while a card is being dragged with the
// pointer at pointerY inside a viewport of the given height: negative scrolls
// up, positive down, zero outside the edge bands or when nothing is dragged.
func (c *DragController) AutoScroll(pointerY, viewportHeight float64) float64 {
	if c.DraggingID() == "" {
		return 0
	}
	return scrollStep(pointerY, viewportHeight)
}

// scrollStep grows linearly toward the viewport edge.
func scrollStep(pointerY, viewportHeight float64) float64 {
	if viewportHeight <= 0 {
		return 0
	}
	edge := ScrollEdge
	if edge > viewportHeight/2 {
		edge = viewportHeight / 2
	}
	switch {
	case pointerY < edge:
		return -ScrollMaxSpeed * (edge - clamp(pointerY, 0, edge)) / edge
	case pointerY > viewportHeight-edge:
		return ScrollMaxSpeed * (clamp(pointerY, viewportHeight-edge, viewportHeight) - (viewportHeight - edge)) / edge
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
