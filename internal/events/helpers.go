package events

import (
	"encoding/json"
	"fmt"
)

// SetPhaseData sets the Data field with PhaseData in a type-safe way.
func (e *PipelineEvent) SetPhaseData(data PhaseData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert PhaseData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetPhaseData retrieves PhaseData from the Data field.
func (e *PipelineEvent) GetPhaseData() (*PhaseData, error) {
	var data PhaseData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PhaseData: %w", err)
	}
	return &data, nil
}

// SetGapsRankedData sets the Data field with GapsRankedData in a type-safe way.
func (e *PipelineEvent) SetGapsRankedData(data GapsRankedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert GapsRankedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetGapsRankedData retrieves GapsRankedData from the Data field.
func (e *PipelineEvent) GetGapsRankedData() (*GapsRankedData, error) {
	var data GapsRankedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse GapsRankedData: %w", err)
	}
	return &data, nil
}

// SetDeltaDetectedData sets the Data field with DeltaDetectedData in a type-safe way.
func (e *PipelineEvent) SetDeltaDetectedData(data DeltaDetectedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert DeltaDetectedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetDeltaDetectedData retrieves DeltaDetectedData from the Data field.
func (e *PipelineEvent) GetDeltaDetectedData() (*DeltaDetectedData, error) {
	var data DeltaDetectedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse DeltaDetectedData: %w", err)
	}
	return &data, nil
}

// SetDeltaReviewedData sets the Data field with DeltaReviewedData in a type-safe way.
func (e *PipelineEvent) SetDeltaReviewedData(data DeltaReviewedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert DeltaReviewedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetDeltaReviewedData retrieves DeltaReviewedData from the Data field.
func (e *PipelineEvent) GetDeltaReviewedData() (*DeltaReviewedData, error) {
	var data DeltaReviewedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse DeltaReviewedData: %w", err)
	}
	return &data, nil
}

// SetEscapeHatchData sets the Data field with EscapeHatchData in a type-safe way.
func (e *PipelineEvent) SetEscapeHatchData(data EscapeHatchData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert EscapeHatchData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetEscapeHatchData retrieves EscapeHatchData from the Data field.
func (e *PipelineEvent) GetEscapeHatchData() (*EscapeHatchData, error) {
	var data EscapeHatchData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse EscapeHatchData: %w", err)
	}
	return &data, nil
}

// SetReadinessScoredData sets the Data field with ReadinessScoredData in a type-safe way.
func (e *PipelineEvent) SetReadinessScoredData(data ReadinessScoredData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert ReadinessScoredData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetReadinessScoredData retrieves ReadinessScoredData from the Data field.
func (e *PipelineEvent) GetReadinessScoredData() (*ReadinessScoredData, error) {
	var data ReadinessScoredData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ReadinessScoredData: %w", err)
	}
	return &data, nil
}

// SetStoryStateData sets the Data field with StoryStateData in a type-safe way.
func (e *PipelineEvent) SetStoryStateData(data StoryStateData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert StoryStateData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetStoryStateData retrieves StoryStateData from the Data field.
func (e *PipelineEvent) GetStoryStateData() (*StoryStateData, error) {
	var data StoryStateData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse StoryStateData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
