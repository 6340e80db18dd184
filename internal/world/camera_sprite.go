package world

// CameraSprite is a camera's entry for one sprite in its tracked sectors.
type CameraSprite struct {
	sprite   Sprite
	orphan   bool
	selected bool
}

func (cs *CameraSprite) Sprite() Sprite { return cs.sprite }

// Orphan reports whether the entry has been dropped from the camera because
// its sprite left the tracked sectors or was deleted.
func (cs *CameraSprite) Orphan() bool { return cs.orphan }

func (cs *CameraSprite) Selected() bool { return cs.selected }

func (cs *CameraSprite) layer() float64 { return cs.sprite.Base().layer }

// insertByLayer inserts cs keeping list ascending by layer. The scan starts
// at the tail and stops at the first entry whose layer is not above cs's, so
// equal layers keep arrival order.
func insertByLayer(list []*CameraSprite, cs *CameraSprite) []*CameraSprite {
	l := cs.layer()
	i := len(list)
	for i > 0 && list[i-1].layer() > l {
		i--
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = cs
	return list
}

// sortByLayer restores ascending layer order after layers changed in place.
// Insertion sort keeps equal layers in arrival order and is linear when
// little moved.
func sortByLayer(list []*CameraSprite) {
	for i := 1; i < len(list); i++ {
		cs := list[i]
		l := cs.layer()
		j := i
		for j > 0 && list[j-1].layer() > l {
			list[j] = list[j-1]
			j--
		}
		list[j] = cs
	}
}

func removeCameraSprite(list []*CameraSprite, cs *CameraSprite) []*CameraSprite {
	for i, cur := range list {
		if cur == cs {
			copy(list[i:], list[i+1:])
			list[len(list)-1] = nil
			return list[:len(list)-1]
		}
	}
	return list
}
