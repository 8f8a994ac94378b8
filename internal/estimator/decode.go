package estimator

import (
	"image"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
)

// decode converts an inference response. {"face": false} means no face.
// Expected fields: face, yaw, pitch, roll, gaze_x, gaze_y, bbox [x, y, w, h].
func decode(resp *structpb.Struct) (*attention.Estimate, error) {
	if resp == nil {
		return nil, apperrors.New(apperrors.CodeEstimatorBadResponse, "empty response")
	}
	fields := resp.GetFields()
	face, ok := fields["face"]
	if !ok {
		return nil, apperrors.New(apperrors.CodeEstimatorBadResponse, "missing face field")
	}
	if !face.GetBoolValue() {
		return nil, nil
	}

	est := &attention.Estimate{}
	for name, dst := range map[string]*float64{
		"yaw":    &est.Yaw,
		"pitch":  &est.Pitch,
		"roll":   &est.Roll,
		"gaze_x": &est.GazeX,
		"gaze_y": &est.GazeY,
	} {
		v, ok := fields[name]
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeEstimatorBadResponse, "missing %s", name)
		}
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
			return nil, apperrors.Newf(apperrors.CodeEstimatorBadResponse, "%s is not a number", name)
		}
		*dst = v.GetNumberValue()
	}

	if box := fields["bbox"].GetListValue(); box != nil {
		vals := box.GetValues()
		if len(vals) != 4 {
			return nil, apperrors.Newf(apperrors.CodeEstimatorBadResponse, "bbox has %d values, want 4", len(vals))
		}
		x, y := int(vals[0].GetNumberValue()), int(vals[1].GetNumberValue())
		w, h := int(vals[2].GetNumberValue()), int(vals[3].GetNumberValue())
		est.BBox = image.Rect(x, y, x+w, y+h)
	}
	return est, nil
}
